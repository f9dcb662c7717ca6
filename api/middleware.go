package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"ytblog/store"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-KEY"
	userKey      = "user"
)

// UserLookup resolves an API key to its user.
type UserLookup interface {
	UserByToken(ctx context.Context, token string) (*store.User, error)
}

// AuthMiddleware authenticates the X-API-KEY header and stores the user in
// the request context.
func AuthMiddleware(users UserLookup, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(apiKeyHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "API key missing"})
			return
		}

		user, err := users.UserByToken(c.Request.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid API key"})
			return
		}
		if err != nil {
			logger.Error("user lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}

		if !user.CanUseExtension {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "You are not allowed to use this integration"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *store.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*store.User); ok {
			return u
		}
	}
	return nil
}
