package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bistro/auth/internal/config"
	"bistro/auth/internal/models"
)

const identityKey = "current_identity"

type SessionResolver interface {
	Resolve(ctx context.Context, token string, client models.ClientInfo) (models.Identity, error)
}

// ClientInfo is the binding metadata of the current request. The IP honours
// the engine's trusted proxy list.
func ClientInfo(c *gin.Context) models.ClientInfo {
	return models.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// Auth admits requests carrying a live, correctly bound session. Anything
// else is treated as logged out: browsers are sent to the login page, API
// clients get a 401, and a stale cookie is cleared.
func Auth(cfg *config.AppConfig, sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cfg.Security.CookieName)

		identity, err := sessions.Resolve(c.Request.Context(), token, ClientInfo(c))
		if err != nil {
			if token != "" {
				ClearSessionCookie(c, cfg.Security)
			}
			if wantsHTML(c) {
				c.Redirect(http.StatusSeeOther, cfg.Security.LoginPath)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			return
		}

		c.Set(identityKey, identity)

		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
