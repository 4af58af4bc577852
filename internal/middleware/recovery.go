package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 and drops any session cookie the
// handler queued before panicking.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			event := log.Error().
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Str("request_id", c.Writer.Header().Get(requestIDHeader)).
				Bytes("stack", debug.Stack())
			if identity, ok := CurrentIdentity(c); ok {
				event = event.Str("account_id", identity.ID)
			}
			event.Msg("panic recovered")

			if !c.Writer.Written() {
				c.Writer.Header().Del("Set-Cookie")
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal_server_error",
			})
		}()
		c.Next()
	}
}
