package httpserver

import (
	"context"
	"net/http"
	"strings"

	"marketplace-core/internal/domain"

	"github.com/gin-gonic/gin"
)

type ctxKey string

const actorCtxKey ctxKey = "actor"

// authMiddleware resolves the bearer token into a domain.Actor stored on the
// request context.
func authMiddleware(tokens tokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing bearer token", Code: "unauthenticated"})
			return
		}
		actor, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid token", Code: "unauthenticated"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), actorCtxKey, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	actor, _ := c.Request.Context().Value(actorCtxKey).(domain.Actor)
	return actor
}
