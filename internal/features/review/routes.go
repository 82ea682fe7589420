package review

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches review endpoints to the router. optionalAuth attaches the
// caller when a token is present so their own review can be highlighted.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, optionalAuth, authenticated, student []gin.HandlerFunc) {
	reviews := router.Group("/reviews")

	reviews.GET("/course/:courseId", append(optionalAuth, handler.ListByCourse)...)
	reviews.POST("", append(student, handler.Create)...)
	reviews.PUT("/:reviewId", append(student, handler.Update)...)
	reviews.DELETE("/:reviewId", append(student, handler.Delete)...)
	reviews.POST("/:reviewId/helpful", append(authenticated, handler.MarkHelpful)...)
}
