package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace_back_end/internal/models"
)

const actorKey = "actor"

// Authenticator vérifie un jeton d'accès (auth.Sessions).
type Authenticator interface {
	Authenticate(ctx context.Context, access string) (models.Actor, error)
}

// AuthRequired exige un jeton d'accès présent dans la liste blanche.
// Le jeton vient du header Authorization, ou du paramètre token pour les websockets.
func AuthRequired(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Debug("🔒 Jeton refusé", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
			return
		}

		c.Set(actorKey, actor)
		c.Set("user_id", actor.UserID.String())
		c.Set("role", string(actor.Role))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Actor renvoie l'utilisateur authentifié posé par AuthRequired.
func Actor(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{}
}

// SetActor pose l'acteur dans le contexte (tests de handlers).
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
	c.Set("user_id", actor.UserID.String())
	c.Set("role", string(actor.Role))
}
