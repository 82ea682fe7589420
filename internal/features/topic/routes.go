package topic

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches lecturer topic endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, lecturer []gin.HandlerFunc) {
	router.GET("/lecturer/courses/:courseId/topics", append(lecturer, handler.List)...)
	router.POST("/lecturer/courses/:courseId/topics", append(lecturer, handler.Create)...)

	topics := router.Group("/lecturer/topics")
	topics.PATCH("/:topicId", append(lecturer, handler.Update)...)
	topics.DELETE("/:topicId", append(lecturer, handler.Delete)...)
}
