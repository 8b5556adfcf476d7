package meetings

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/negotiations"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/notifications"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const (
	// RoomGrace keeps a room open after the scheduled end.
	RoomGrace   = time.Hour
	earlyJoin   = 10 * time.Minute
	maxDuration = 8 * time.Hour
)

type CreateMeetingRequest struct {
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

func roomName() string {
	return "imv-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func CreateMeeting(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	now := time.Now().UTC()
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be after start_date"})
		return
	}
	if end.Sub(start) > maxDuration {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Meetings cannot last longer than 8 hours"})
		return
	}
	if !end.After(now) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Meeting must end in the future"})
		return
	}

	n, party, err := negotiations.Load(utils.DB, user.ID, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, negotiations.ErrNotParty) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Negotiation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch negotiation"})
		return
	}

	ctx := c.Request.Context()
	room, err := utils.Daily.CreateRoom(ctx, utils.RoomRequest{
		Name:      roomName(),
		NotBefore: start.Add(-earlyJoin),
		ExpiresAt: end.Add(RoomGrace),
	})
	if err != nil {
		logger.L().Error("failed to create daily room", "negotiation_id", n.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create meeting room"})
		return
	}

	meeting := models.Meeting{
		NegotiationID: n.ID,
		RoomName:      room.Name,
		URL:           room.URL,
		StartDate:     start,
		EndDate:       end,
		CreatedByID:   user.ID,
	}
	err = utils.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&meeting).Error; err != nil {
			return err
		}
		return notifications.Notify(tx, negotiations.CounterpartUserID(n, party), models.NotificationMeetingScheduled, map[string]interface{}{
			"meeting_id":     meeting.ID,
			"negotiation_id": n.ID,
			"project_name":   n.Project.Name,
			"start_date":     start.Format(time.RFC3339),
		})
	})
	if err != nil {
		logger.L().Error("failed to store meeting", "room", room.Name, "error", err)
		if derr := utils.Daily.DeleteRoom(ctx, room.Name); derr != nil {
			logger.L().Warn("failed to clean up daily room", "room", room.Name, "error", derr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule meeting"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"meeting": meeting})
}

// ListMeetings returns the caller's meetings that have not ended yet.
func ListMeetings(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var meetings []models.Meeting
	err := utils.DB.Preload("Negotiation").Preload("Negotiation.Project").
		Where("negotiation_id IN (?)", negotiations.ForUser(utils.DB, user.ID).Select("id")).
		Where("end_date > ?", time.Now().UTC()).
		Order("start_date ASC").
		Find(&meetings).Error
	if err != nil {
		logger.L().Error("failed to list meetings", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meetings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

func loadMeeting(c *gin.Context, user models.User) (*models.Meeting, bool) {
	var meeting models.Meeting
	err := utils.DB.Where("id = ?", c.Param("id")).
		Where("negotiation_id IN (?)", negotiations.ForUser(utils.DB, user.ID).Select("id")).
		First(&meeting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meeting"})
		return nil, false
	}
	return &meeting, true
}

func DeleteMeeting(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	meeting, ok := loadMeeting(c, user)
	if !ok {
		return
	}

	if err := utils.Daily.DeleteRoom(c.Request.Context(), meeting.RoomName); err != nil {
		logger.L().Error("failed to delete daily room", "room", meeting.RoomName, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete meeting room"})
		return
	}
	if err := utils.DB.Delete(meeting).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meeting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meeting deleted"})
}

// MeetingToken issues a Daily token for the room. The scheduler joins as owner.
func MeetingToken(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	meeting, ok := loadMeeting(c, user)
	if !ok {
		return
	}

	expiresAt := meeting.EndDate.Add(RoomGrace)
	if !expiresAt.After(time.Now().UTC()) {
		c.JSON(http.StatusGone, gin.H{"error": "Meeting has ended"})
		return
	}

	token, err := utils.Daily.CreateMeetingToken(c.Request.Context(), meeting.RoomName, user.FullName(), expiresAt, meeting.CreatedByID == user.ID)
	if err != nil {
		logger.L().Error("failed to create meeting token", "room", meeting.RoomName, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create meeting token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "url": meeting.URL})
}
