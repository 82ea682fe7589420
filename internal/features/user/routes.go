package user

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches user endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, authenticated, admin []gin.HandlerFunc) {
	me := router.Group("/users/me")
	{
		me.GET("", append(authenticated, handler.Me)...)
		me.PATCH("", append(authenticated, handler.UpdateMe)...)
	}

	users := router.Group("/admin/users")
	{
		users.GET("", append(admin, handler.List)...)
		users.GET("/:userId", append(admin, handler.GetByID)...)
		users.PATCH("/:userId/status", append(admin, handler.SetStatus)...)
	}
}
