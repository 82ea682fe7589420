package dashboard

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches reporting endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, admin, lecturer []gin.HandlerFunc) {
	dashboard := router.Group("/dashboard")
	{
		adminGroup := dashboard.Group("/admin")
		adminGroup.GET("/stats", append(admin, handler.AdminStats)...)
		adminGroup.GET("/revenue", append(admin, handler.Revenue)...)
		adminGroup.GET("/lecturers/:lecturerId/earnings", append(admin, handler.LecturerEarnings)...)
		adminGroup.GET("/courses/:courseId", append(admin, handler.CourseDetails)...)
		adminGroup.GET("/system", append(admin, handler.SystemStats)...)
		adminGroup.GET("/logs", append(admin, handler.SystemLogs)...)
		adminGroup.POST("/logs/clear", append(admin, handler.ClearLogs)...)

		dashboard.GET("/lecturer/earnings", append(lecturer, handler.MyEarnings)...)
		dashboard.GET("/lecturer/students", append(lecturer, handler.MyStudents)...)
	}
}
