package course

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches lecturer course endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, lecturer, owners []gin.HandlerFunc) {
	courses := router.Group("/lecturer/courses")

	courses.GET("", append(lecturer, handler.ListMine)...)
	courses.POST("", append(lecturer, handler.Create)...)
	courses.GET("/:courseId", append(lecturer, handler.GetMine)...)
	courses.PATCH("/:courseId", append(lecturer, handler.Update)...)
	courses.PUT("/:courseId/thumbnail", append(lecturer, handler.UploadThumbnail)...)
	courses.DELETE("/:courseId", append(owners, handler.Delete)...)
}
