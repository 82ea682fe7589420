package settlement

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes attaches payment endpoints to the router. The webhook is public and
// authenticated by its signature.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, student []gin.HandlerFunc) {
	payments := router.Group("/payments")
	payments.POST("/intents", append(student, handler.CreateIntent)...)
	payments.POST("/confirm", append(student, handler.Confirm)...)
	payments.POST("/webhook", handler.Webhook)
}
