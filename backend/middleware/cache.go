package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// NoStore keeps API responses, which carry presigned URLs and signature
// data, out of shared caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
