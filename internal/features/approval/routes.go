package approval

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the moderation endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, admin []gin.HandlerFunc) {
	group := router.Group("/admin/approvals")

	group.GET("", append(admin, handler.Queue)...)
	group.PATCH("/courses/:courseId", append(admin, handler.DecideCourse)...)
	group.PATCH("/topics/:topicId", append(admin, handler.DecideTopic)...)
	group.PATCH("/lectures/:lectureId", append(admin, handler.DecideLecture)...)
}
