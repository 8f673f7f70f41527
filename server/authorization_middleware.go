package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/permission"
)

// RequirePermission returns a middleware that lets a request through only when a role of the
// caller grants the request method's permission on the matched route pattern. It runs after
// TokenMiddleware.
func (s *Server) RequirePermission() gin.HandlerFunc {
	return s.gate(false)
}

// RequireSelfOrPermission is RequirePermission with a shortcut: a caller whose id equals the
// :userId path parameter is authorized without consulting the ACL.
func (s *Server) RequireSelfOrPermission() gin.HandlerFunc {
	return s.gate(true)
}

func (s *Server) gate(allowSelf bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserIDFromContext(c)
		if userID == "" {
			s.respondError(c, fmt.Errorf("not authenticated: %w", errors.ErrUnauthorized))
			return
		}
		if allowSelf && c.Param("userId") == userID {
			authzDecisions.WithLabelValues("self").Inc()
			c.Next()
			return
		}
		if err := s.checkAllowed(c.Request.Context(), userID, c.FullPath(), permission.Method(c.Request.Method)); err != nil {
			s.respondError(c, err)
			return
		}
		c.Next()
	}
}

// checkAllowed returns nil when userID may exercise perm on resource, ErrForbidden when it
// may not, and the store error when the ACL cannot be read.
func (s *Server) checkAllowed(ctx context.Context, userID, resource, perm string) error {
	ok, err := s.ACL.IsAllowed(ctx, userID, resource, perm)
	if err != nil {
		authzDecisions.WithLabelValues("error").Inc()
		return err
	}
	if !ok {
		authzDecisions.WithLabelValues("denied").Inc()
		s.Logger.InfoContext(ctx, "permission denied", "user_id", userID, "resource", resource, "permission", perm)
		return fmt.Errorf("%s on %s is not permitted: %w", perm, resource, errors.ErrForbidden)
	}
	authzDecisions.WithLabelValues("allowed").Inc()
	return nil
}
