package utils

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
)

type MeetingRoom struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type RoomRequest struct {
	Name      string
	NotBefore time.Time
	ExpiresAt time.Time
}

// MeetingProvider is the part of Daily.co's REST API the platform uses.
type MeetingProvider interface {
	CreateRoom(ctx context.Context, req RoomRequest) (*MeetingRoom, error)
	DeleteRoom(ctx context.Context, name string) error
	CreateMeetingToken(ctx context.Context, room, userName string, expiresAt time.Time, owner bool) (string, error)
}

// Daily is the process-wide meeting provider.
var Daily MeetingProvider

type DailyClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewDailyClient(baseURL, apiKey string) *DailyClient {
	return &DailyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    defaultHTTPClient(),
	}
}

func (d *DailyClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + d.apiKey}
}

func (d *DailyClient) CreateRoom(ctx context.Context, req RoomRequest) (*MeetingRoom, error) {
	properties := map[string]interface{}{
		"exp":                req.ExpiresAt.Unix(),
		"eject_at_room_exp":  true,
		"enable_prejoin_ui":  true,
		"enable_chat":        true,
		"enable_screenshare": true,
		"max_participants":   10,
	}
	if !req.NotBefore.IsZero() {
		properties["nbf"] = req.NotBefore.Unix()
	}
	body := map[string]interface{}{
		"name":       req.Name,
		"privacy":    "private",
		"properties": properties,
	}

	var room MeetingRoom
	if err := doJSON(ctx, d.http, "daily", http.MethodPost, d.baseURL+"/rooms", d.headers(), body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom removes the room. A room already gone counts as deleted.
func (d *DailyClient) DeleteRoom(ctx context.Context, name string) error {
	err := doJSON(ctx, d.http, "daily", http.MethodDelete, d.baseURL+"/rooms/"+url.PathEscape(name), d.headers(), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (d *DailyClient) CreateMeetingToken(ctx context.Context, room, userName string, expiresAt time.Time, owner bool) (string, error) {
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"room_name": room,
			"user_name": userName,
			"exp":       expiresAt.Unix(),
			"is_owner":  owner,
		},
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := doJSON(ctx, d.http, "daily", http.MethodPost, d.baseURL+"/meeting-tokens", d.headers(), body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ReleaseRooms deletes rooms whose meetings are gone. Failures are logged
// only: every room expires on its own an hour after its meeting ends.
func ReleaseRooms(ctx context.Context, rooms []string) {
	if Daily == nil {
		return
	}
	for _, room := range rooms {
		if err := Daily.DeleteRoom(ctx, room); err != nil {
			logger.L().Warn("failed to release daily room", "room", room, "error", err)
		}
	}
}
