package server

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxImportSize bounds the multipart body of a bulk signup.
const maxImportSize = 32 << 20

// publicPaths are served without the authorization gate. All but /verify skip authentication too.
var publicPaths = map[string]bool{
	"/healthz":       true,
	"/metrics":       true,
	"/signup":        true,
	"/login":         true,
	"/logout":        true,
	"/session":       true,
	"/verify":        true,
	"/verify/:token": true,
	"/forgot":        true,
	"/reset/:token":  true,
}

// NewGinEngine builds the Gin router with every REST route. Requests matching no local
// route are handed to the application gateway.
func NewGinEngine(s *Server) *gin.Engine {
	initSessions(s.Config.Session)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	// Resource names in permission queries are URL-escaped paths.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery())
	r.Use(s.observeMiddleware())

	r.GET("/healthz", s.HandleHealthGin)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Account routes (public)
	r.POST("/signup", s.HandleSignupGin)
	r.POST("/login", s.HandleLoginGin)
	r.POST("/logout", s.HandleLogoutGin)
	r.GET("/session", s.HandleSessionGin)
	r.GET("/verify/:token", s.HandleVerifyEmailGin)
	r.POST("/forgot", s.HandleForgotPasswordGin)
	r.POST("/reset/:token", s.HandleResetPasswordGin)

	// Authenticated routes. TokenMiddleware sets user_id; the gate then checks the
	// route pattern against the caller's roles.
	api := r.Group("")
	api.Use(s.TokenMiddleware())
	self := s.RequireSelfOrPermission()
	gate := s.RequirePermission()

	api.POST("/signup/massive", gate, s.HandleImportUsersGin)
	api.POST("/verify", s.HandleRequestVerificationGin)

	api.GET("/users", gate, s.HandleListUsersGin)
	api.GET("/users/:userId", self, s.HandleGetUserGin)
	api.PUT("/users/:userId", self, s.HandleUpdateUserGin)
	api.DELETE("/users/:userId", self, s.HandleDeleteUserGin)
	api.PUT("/users/:userId/password", self, s.HandleChangePasswordGin)
	api.GET("/users/:userId/roles", self, s.HandleListUserRolesGin)
	api.POST("/users/:userId/roles", gate, s.HandleAddUserRolesGin)
	api.DELETE("/users/:userId/roles/:roleName", gate, s.HandleRemoveUserRoleGin)
	api.GET("/users/:userId/:resourceName/:permissionName", self, s.HandleCheckPermissionGin)

	api.GET("/roles", gate, s.HandleListRolesGin)
	api.POST("/roles", gate, s.HandleUpsertRolesGin)
	api.GET("/roles/:roleName", gate, s.HandleGetRoleGin)
	api.DELETE("/roles/:roleName", gate, s.HandleDeleteRoleGin)
	api.DELETE("/roles/:roleName/allows", gate, s.HandleRemoveAllowsGin)

	api.GET("/applications", gate, s.HandleListApplicationsGin)
	api.POST("/applications", gate, s.HandleRegisterApplicationGin)
	api.GET("/applications/:id", gate, s.HandleGetApplicationGin)
	api.PUT("/applications/:id", gate, s.HandleUpdateApplicationGin)
	api.DELETE("/applications/:id", gate, s.HandleDeleteApplicationGin)

	s.reserved = reservedPrefixes(r)
	r.NoRoute(s.HandleGatewayGin)
	return r
}

// ProtectedResources lists the route patterns of r that sit behind the authorization gate,
// sorted. These are the resources the admin role is granted on.
func ProtectedResources(r *gin.Engine) []string {
	seen := map[string]bool{}
	var out []string
	for _, rt := range r.Routes() {
		if publicPaths[rt.Path] || seen[rt.Path] {
			continue
		}
		seen[rt.Path] = true
		out = append(out, rt.Path)
	}
	sort.Strings(out)
	return out
}

// reservedPrefixes returns the first path segments used by local routes. Applications may
// not register them as prefixes.
func reservedPrefixes(r *gin.Engine) map[string]bool {
	out := map[string]bool{}
	for _, rt := range r.Routes() {
		seg, _, _ := strings.Cut(strings.TrimPrefix(rt.Path, "/"), "/")
		out[seg] = true
	}
	return out
}
