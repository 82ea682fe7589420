package middleware

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

var staticExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {},
	".ico": {}, ".webp": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
}

// CacheControl marks API responses as uncacheable unless the handler sets its own
// Cache-Control header. Static assets are cached for a year.
func CacheControl(apiPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path

		if strings.HasPrefix(p, apiPrefix) {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		} else if _, ok := staticExtensions[strings.ToLower(path.Ext(p))]; ok {
			c.Header("Cache-Control", "public, max-age=31536000")
		}

		c.Next()
	}
}
