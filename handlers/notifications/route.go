package notifications

import "github.com/gin-gonic/gin"

func RegisterNotificationsRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", GetNotifications)
	r.GET("/notifications/unread-count", GetUnreadCount)
	r.POST("/notifications/read-all", MarkAllRead)
	r.POST("/notifications/:id/read", MarkRead)
}
