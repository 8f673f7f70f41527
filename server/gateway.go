package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/permission"
	"github.com/legit-games/user-registry/registry"
)

// Headers the gateway sets on proxied requests.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUsername = "X-User-Name"
)

// HandleGatewayGin serves requests that match no local route. The first path segment selects
// a registered application by prefix; the rest of the path is checked against the caller's
// roles, unless it is an anonymous route of the application, and proxied to its host.
func (s *Server) HandleGatewayGin(c *gin.Context) {
	ctx := c.Request.Context()
	if s.Registry == nil {
		s.respondError(c, fmt.Errorf("route %s: %w", c.Request.URL.Path, errors.ErrNotFound))
		return
	}
	app, rest, err := s.Registry.Resolve(ctx, c.Request.URL.Path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			err = fmt.Errorf("route %s: %w", c.Request.URL.Path, errors.ErrNotFound)
		}
		s.respondError(c, err)
		return
	}

	// Identity headers are only ever set by the gateway.
	c.Request.Header.Del(HeaderUserID)
	c.Request.Header.Del(HeaderUsername)
	if !registry.IsAnonymous(app, rest) {
		id, err := s.authenticate(c)
		if err != nil {
			s.respondError(c, err)
			return
		}
		setIdentity(c, id)
		if err := s.checkAllowed(ctx, id.UserID, rest, permission.Method(c.Request.Method)); err != nil {
			s.respondError(c, err)
			return
		}
		c.Request.Header.Set(HeaderUserID, id.UserID)
		if id.Username != "" {
			c.Request.Header.Set(HeaderUsername, id.Username)
		}
	}

	target, err := url.Parse(app.Host)
	if err != nil {
		s.respondError(c, fmt.Errorf("application %s host: %w", app.Name, err))
		return
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = singleJoin(target.Path, rest)
			pr.Out.URL.RawPath = ""
			pr.SetXForwarded()
		},
		Transport: s.Transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, perr error) {
			s.Logger.ErrorContext(r.Context(), "gateway upstream failed", "application", app.Name, "error", perr)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "upstream unavailable"})
		},
	}
	proxy.ServeHTTP(c.Writer, c.Request)
}

func singleJoin(base, rest string) string {
	switch {
	case base == "" || base == "/":
		return rest
	case base[len(base)-1] == '/' && rest != "" && rest[0] == '/':
		return base + rest[1:]
	default:
		return base + rest
	}
}
