package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

type FakeMailer struct {
	mu   sync.Mutex
	Sent []utils.Email
	Err  error
}

func (m *FakeMailer) Send(ctx context.Context, email utils.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, email)
	return nil
}

// InstallMailer swaps utils.Mail for a fake for the duration of the test.
func InstallMailer(t *testing.T) *FakeMailer {
	t.Helper()
	fake := &FakeMailer{}
	prev := utils.Mail
	utils.Mail = fake
	t.Cleanup(func() { utils.Mail = prev })
	return fake
}

type FakeIdentity struct {
	Users   map[string]*utils.ClerkUser
	Deleted []string
	Err     error
}

func (f *FakeIdentity) GetUser(ctx context.Context, clerkID string) (*utils.ClerkUser, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	u, ok := f.Users[clerkID]
	if !ok {
		return nil, &utils.APIError{Service: "clerk", StatusCode: 404}
	}
	return u, nil
}

func (f *FakeIdentity) DeleteUser(ctx context.Context, clerkID string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Deleted = append(f.Deleted, clerkID)
	return nil
}

func InstallIdentity(t *testing.T) *FakeIdentity {
	t.Helper()
	fake := &FakeIdentity{Users: map[string]*utils.ClerkUser{}}
	prev := utils.Clerk
	utils.Clerk = fake
	t.Cleanup(func() { utils.Clerk = prev })
	return fake
}

type FakeMeetings struct {
	Rooms   map[string]utils.RoomRequest
	Deleted []string
	Err     error
}

func (f *FakeMeetings) CreateRoom(ctx context.Context, req utils.RoomRequest) (*utils.MeetingRoom, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Rooms[req.Name] = req
	return &utils.MeetingRoom{Name: req.Name, URL: "https://imvestor.daily.co/" + req.Name}, nil
}

func (f *FakeMeetings) DeleteRoom(ctx context.Context, name string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Deleted = append(f.Deleted, name)
	delete(f.Rooms, name)
	return nil
}

func (f *FakeMeetings) CreateMeetingToken(ctx context.Context, room, userName string, expiresAt time.Time, owner bool) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return "token-" + room + "-" + userName, nil
}

func InstallMeetings(t *testing.T) *FakeMeetings {
	t.Helper()
	fake := &FakeMeetings{Rooms: map[string]utils.RoomRequest{}}
	prev := utils.Daily
	utils.Daily = fake
	t.Cleanup(func() { utils.Daily = prev })
	return fake
}

type FakeStorage struct{}

func (FakeStorage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://r2.example/" + key + "?signed=1", nil
}

func (FakeStorage) PublicURL(key string) string {
	return "https://cdn.example/" + key
}

func InstallStorage(t *testing.T) {
	t.Helper()
	prev := utils.Storage
	utils.Storage = FakeStorage{}
	t.Cleanup(func() { utils.Storage = prev })
}

type FakeNews struct {
	Posts []utils.NewsPost
	Err   error
}

func (f *FakeNews) ListPosts(ctx context.Context) ([]utils.NewsPost, error) {
	return f.Posts, f.Err
}

func InstallNews(t *testing.T, posts ...utils.NewsPost) *FakeNews {
	t.Helper()
	fake := &FakeNews{Posts: posts}
	prev := utils.News
	utils.News = fake
	t.Cleanup(func() { utils.News = prev })
	return fake
}
