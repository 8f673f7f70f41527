package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
)

// HandleListApplicationsGin handles GET /applications.
func (s *Server) HandleListApplicationsGin(c *gin.Context) {
	apps, err := s.Registry.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if apps == nil {
		apps = []models.Application{}
	}
	c.JSON(http.StatusOK, apps)
}

// HandleGetApplicationGin handles GET /applications/:id.
func (s *Server) HandleGetApplicationGin(c *gin.Context) {
	app, err := s.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// HandleRegisterApplicationGin handles POST /applications. Registering a known name merges
// into the existing application.
func (s *Server) HandleRegisterApplicationGin(c *gin.Context) {
	var app models.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		badRequest(c, "invalid application descriptor: "+err.Error())
		return
	}
	if err := s.checkPrefix(app.Prefix); err != nil {
		s.respondError(c, err)
		return
	}
	out, err := s.Registry.Register(c.Request.Context(), app)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// HandleUpdateApplicationGin handles PUT /applications/:id.
func (s *Server) HandleUpdateApplicationGin(c *gin.Context) {
	var app models.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		badRequest(c, "invalid application descriptor: "+err.Error())
		return
	}
	if err := s.checkPrefix(app.Prefix); err != nil {
		s.respondError(c, err)
		return
	}
	out, err := s.Registry.Update(c.Request.Context(), c.Param("id"), app)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleDeleteApplicationGin handles DELETE /applications/:id. Roles the application installed
// are kept.
func (s *Server) HandleDeleteApplicationGin(c *gin.Context) {
	if err := s.Registry.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "application deleted"})
}

// checkPrefix rejects prefixes that would shadow a local route.
func (s *Server) checkPrefix(prefix string) error {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if s.reserved[p] {
		return fmt.Errorf("application prefix %q is reserved: %w", p, errors.ErrValidation)
	}
	return nil
}
