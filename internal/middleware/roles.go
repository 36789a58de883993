package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"marketplace_back_end/internal/models"
)

// RequireRole n'autorise que les rôles listés. À placer après AuthRequired.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, Actor(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}
