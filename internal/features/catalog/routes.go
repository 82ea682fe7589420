package catalog

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches the public catalog endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, optionalAuth, authenticated, owners []gin.HandlerFunc) {
	courses := router.Group("/courses")
	courses.GET("", handler.List)
	courses.GET("/:courseId", append(optionalAuth, handler.Get)...)
	courses.GET("/:courseId/lectures/:lectureId/content", append(authenticated, handler.LectureContent)...)

	router.GET("/lecturer/courses/:courseId/tree", append(owners, handler.OwnerTree)...)
}
