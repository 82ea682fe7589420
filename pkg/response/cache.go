package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SuccessWithCache sends a response the caller's browser may reuse for maxAge seconds.
func SuccessWithCache(c *gin.Context, status int, data interface{}, message string, maxAge int) {
	c.Header("Cache-Control", formatCacheControl("private", maxAge))
	Success(c, status, data, message, nil)
}

// SuccessWithPublicCache sends a response shared caches may store for maxAge seconds.
// Only use it for data that is identical for every caller.
func SuccessWithPublicCache(c *gin.Context, status int, data interface{}, message string, pagination interface{}, maxAge int) {
	c.Header("Cache-Control", formatCacheControl("public", maxAge))
	Success(c, status, data, message, pagination)
}

// SuccessNoCache sends a successful JSON response with no-cache headers.
func SuccessNoCache(c *gin.Context, status int, data interface{}, message string) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	Success(c, status, data, message, nil)
}

func formatCacheControl(scope string, maxAge int) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return scope + ", max-age=" + strconv.Itoa(maxAge)
}
