package notification

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches notification endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, authenticated, admin []gin.HandlerFunc) {
	notifications := router.Group("/notifications")
	{
		notifications.GET("", append(authenticated, handler.List)...)
		notifications.GET("/unread-count", append(authenticated, handler.UnreadCount)...)
		notifications.PATCH("/read-all", append(authenticated, handler.MarkAllRead)...)
		notifications.PATCH("/:notificationId/read", append(authenticated, handler.MarkRead)...)
		notifications.DELETE("/:notificationId", append(authenticated, handler.Delete)...)
		notifications.DELETE("", append(authenticated, handler.Clear)...)
	}

	router.POST("/admin/notifications", append(admin, handler.Send)...)
}
