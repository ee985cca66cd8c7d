package middleware

import "github.com/gin-gonic/gin"

// NoStore forbids caching. The kiosk page must always be fetched fresh so a
// stale copy never talks to a restarted bridge.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
