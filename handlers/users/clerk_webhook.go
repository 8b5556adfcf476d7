package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/gin-gonic/gin"
	svix "github.com/svix/svix-webhooks/go"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const maxWebhookBody = 64 << 10

type clerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkDeletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ClerkWebhook keeps local users in step with Clerk. Requests are verified
// with the Svix signing secret Clerk issues for the endpoint.
func ClerkWebhook(secret string) gin.HandlerFunc {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		logger.L().Warn("clerk webhook secret is not usable, endpoint disabled", "error", err)
	}

	return func(c *gin.Context) {
		if wh == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook not configured"})
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		if err := wh.Verify(payload, c.Request.Header); err != nil {
			utils.WebhookEvents.WithLabelValues("clerk", "unknown", "bad_signature").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}

		var event clerkEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			utils.WebhookEvents.WithLabelValues("clerk", "unknown", "malformed").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}

		switch event.Type {
		case "user.updated":
			err = syncClerkUser(event.Data)
		case "user.deleted":
			err = removeClerkUser(c.Request.Context(), event.Data)
		default:
			utils.WebhookEvents.WithLabelValues("clerk", event.Type, "ignored").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		if err != nil {
			logger.L().Error("failed to handle clerk event", "type", event.Type, "error", err)
			utils.WebhookEvents.WithLabelValues("clerk", event.Type, "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
			return
		}

		utils.WebhookEvents.WithLabelValues("clerk", event.Type, "processed").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func syncClerkUser(data json.RawMessage) error {
	var payload clerk.User
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	identity := utils.IdentityFromClerk(&payload)
	if identity.Email == "" {
		return nil
	}

	var user models.User
	if err := utils.DB.Where("clerk_id = ?", identity.ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// not onboarded yet
			return nil
		}
		return err
	}

	email := strings.ToLower(identity.Email)
	if email == user.Email {
		return nil
	}
	return utils.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":          email,
		"email_verified": false,
	}).Error
}

func removeClerkUser(ctx context.Context, data json.RawMessage) error {
	var payload clerkDeletedObject
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return nil
	}

	var user models.User
	if err := utils.DB.Where("clerk_id = ?", payload.ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	var rooms []string
	err := utils.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		rooms, err = deleteLocalUser(tx, user.ID)
		return err
	})
	if err != nil {
		return err
	}
	utils.ReleaseRooms(ctx, rooms)
	return nil
}
