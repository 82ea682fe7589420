package lecture

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches lecturer lecture endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, lecturer []gin.HandlerFunc) {
	router.GET("/lecturer/topics/:topicId/lectures", append(lecturer, handler.List)...)
	router.POST("/lecturer/topics/:topicId/lectures", append(lecturer, handler.Create)...)

	lectures := router.Group("/lecturer/lectures")
	lectures.PATCH("/:lectureId", append(lecturer, handler.Update)...)
	lectures.POST("/:lectureId/upload-url", append(lecturer, handler.UploadURL)...)
	lectures.DELETE("/:lectureId", append(lecturer, handler.Delete)...)
}
