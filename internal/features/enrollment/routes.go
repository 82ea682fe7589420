package enrollment

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches enrollment endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, student, admin []gin.HandlerFunc) {
	mine := router.Group("/enrollments")
	mine.GET("/me", append(student, handler.ListMine)...)
	mine.GET("/courses/:courseId", append(student, handler.GetForCourse)...)
	mine.GET("/courses/:courseId/progress", append(student, handler.GetProgress)...)
	mine.PUT("/courses/:courseId/progress", append(student, handler.SaveProgress)...)

	adminGroup := router.Group("/admin/enrollments")
	adminGroup.GET("", append(admin, handler.List)...)
	adminGroup.DELETE("/:enrollmentId", append(admin, handler.Supersede)...)
}
