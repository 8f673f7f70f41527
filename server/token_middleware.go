package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/errors"
)

// Context keys set by TokenMiddleware.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxIdentity = "identity"
)

// TokenMiddleware authenticates the caller and sets user info in context.
// This middleware should run first, before the authorization gate.
// It accepts a Bearer JWT and falls back to the server-side session cookie.
func (s *Server) TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.authenticate(c)
		if err != nil {
			s.respondError(c, err)
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// authenticate resolves the caller from the Authorization header or, without one, the session.
func (s *Server) authenticate(c *gin.Context) (Identity, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if id, ok := s.sessionIdentity(c.Request.Context(), c.Writer, c.Request); ok {
			return id, nil
		}
		return Identity{}, fmt.Errorf("missing authorization header: %w", errors.ErrUnauthorized)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, fmt.Errorf("invalid authorization header format: %w", errors.ErrUnauthorized)
	}
	if s.JWT == nil {
		return Identity{}, fmt.Errorf("bearer tokens are not accepted: %w", errors.ErrUnauthorized)
	}
	claims, err := s.JWT.Parse(parts[1])
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.Subject, Username: claims.Username, Via: "jwt"}, nil
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ctxUserID, id.UserID)
	c.Set(ctxUsername, id.Username)
	c.Set(ctxIdentity, id)
}

// GetUserIDFromContext retrieves the user ID from the gin context.
// Returns empty string if not found.
func GetUserIDFromContext(c *gin.Context) string {
	if userID, exists := c.Get(ctxUserID); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// GetIdentityFromContext returns the authenticated caller set by TokenMiddleware.
func GetIdentityFromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
