package notifications

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

// Notify stores an in-app notification for userID inside tx.
func Notify(tx *gorm.DB, userID string, kind models.NotificationType, data map[string]interface{}) error {
	n := models.Notification{
		UserID: userID,
		Type:   kind,
		Data:   datatypes.JSONMap(data),
	}
	return tx.Create(&n).Error
}

func GetNotifications(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	query := utils.DB.Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		logger.L().Error("failed to fetch notifications", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func GetUnreadCount(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var count int64
	if err := utils.DB.Model(&models.Notification{}).Where("user_id = ? AND read = ?", user.ID, false).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func MarkRead(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	var notification models.Notification
	err := utils.DB.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notification"})
		return
	}

	if err := utils.DB.Model(&notification).Update("read", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": notification})
}

func MarkAllRead(c *gin.Context) {
	user, ok := auth.MustUser(c)
	if !ok {
		return
	}

	res := utils.DB.Model(&models.Notification{}).Where("user_id = ? AND read = ?", user.ID, false).Update("read", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
}
