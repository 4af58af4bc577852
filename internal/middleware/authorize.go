package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/auth/internal/models"
)

func RequireRoles(roles ...models.AdminRole) gin.HandlerFunc {
	roleSet := make(map[models.AdminRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			return
		}

		if _, ok := roleSet[identity.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
