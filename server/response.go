package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/errors"
)

// respondError aborts the request with the status of err and a {message} body. Server-side
// failures are logged and answered with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status := errors.StatusCode(err)
	msg := errors.Message(err)
	switch {
	case status == http.StatusServiceUnavailable:
		s.Logger.ErrorContext(c.Request.Context(), "store unavailable", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		msg = "service unavailable"
	case status >= http.StatusInternalServerError:
		s.Logger.ErrorContext(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, dto.MessageResponse{Message: msg})
}

// badRequest answers 400 with msg.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.MessageResponse{Message: msg})
}
