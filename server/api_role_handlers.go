package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/permission"
	"golang.org/x/sync/errgroup"
)

// HandleListUserRolesGin handles GET /users/:userId/roles.
func (s *Server) HandleListUserRolesGin(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	roles, err := s.ACL.UserRoles(ctx, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// HandleAddUserRolesGin handles POST /users/:userId/roles with a JSON array of role names.
// Every role must exist; if one does not, nothing is assigned.
func (s *Server) HandleAddUserRolesGin(c *gin.Context) {
	var names models.StringList
	if err := c.ShouldBindJSON(&names); err != nil {
		badRequest(c, "body must be an array of role names")
		return
	}
	roles := permission.Normalize(names)
	if len(roles) == 0 {
		badRequest(c, "at least one role name is required")
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("userId")
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.requireRoles(ctx, roles); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ACL.AddUserRoles(ctx, userID, roles...); err != nil {
		s.respondError(c, err)
		return
	}
	s.Logger.InfoContext(ctx, "roles assigned", "user_id", userID, "roles", roles, "by", GetUserIDFromContext(c))
	current, err := s.ACL.UserRoles(ctx, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// requireRoles checks that every role exists. The checks run concurrently and all of them
// complete before the result is known.
func (s *Server) requireRoles(ctx context.Context, roles []string) error {
	exists := make([]bool, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		g.Go(func() error {
			ok, err := s.ACL.RoleExists(gctx, role)
			exists[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var missing []string
	for i, ok := range exists {
		if !ok {
			missing = append(missing, roles[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("roles %s: %w", strings.Join(missing, ", "), errors.ErrNotFound)
	}
	return nil
}

// HandleRemoveUserRoleGin handles DELETE /users/:userId/roles/:roleName. Nobody may remove the
// admin role from their own account.
func (s *Server) HandleRemoveUserRoleGin(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")
	role := c.Param("roleName")
	if role == models.AdminRole && userID == GetUserIDFromContext(c) {
		s.respondError(c, fmt.Errorf("the %s role cannot be removed from your own account: %w", models.AdminRole, errors.ErrForbidden))
		return
	}
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ACL.RemoveUserRoles(ctx, userID, role); err != nil {
		s.respondError(c, err)
		return
	}
	s.Logger.InfoContext(ctx, "role removed", "user_id", userID, "role", role, "by", GetUserIDFromContext(c))
	current, err := s.ACL.UserRoles(ctx, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// HandleCheckPermissionGin handles GET /users/:userId/:resourceName/:permissionName. The
// resource is a URL-escaped path such as %2Fgames%2Fpublic.
func (s *Server) HandleCheckPermissionGin(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	allowed, err := s.ACL.IsAllowed(ctx, userID, c.Param("resourceName"), c.Param("permissionName"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PermissionResponse{Allowed: allowed})
}

// HandleListRolesGin handles GET /roles: every role with its grants.
func (s *Server) HandleListRolesGin(c *gin.Context) {
	ctx := c.Request.Context()
	names, err := s.ACL.Roles(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		grants, err := s.ACL.RoleGrants(ctx, name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		roles = append(roles, models.Role{Name: name, Grants: grants})
	}
	c.JSON(http.StatusOK, roles)
}

// HandleGetRoleGin handles GET /roles/:roleName.
func (s *Server) HandleGetRoleGin(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("roleName")
	role, err := s.role(ctx, name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	users, err := s.ACL.RoleUsers(ctx, name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RoleResponse{Role: *role, Users: users})
}

func (s *Server) role(ctx context.Context, name string) (*models.Role, error) {
	ok, err := s.ACL.RoleExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("role %s: %w", name, errors.ErrNotFound)
	}
	grants, err := s.ACL.RoleGrants(ctx, name)
	if err != nil {
		return nil, err
	}
	return &models.Role{Name: name, Grants: grants}, nil
}

// HandleUpsertRolesGin handles POST /roles with {roles, allows}. Roles are created when absent
// and their grants extended.
func (s *Server) HandleUpsertRolesGin(c *gin.Context) {
	var req models.RoleAllows
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	names := permission.Normalize(req.Roles)
	if len(names) == 0 {
		badRequest(c, "at least one role name is required")
		return
	}
	ctx := c.Request.Context()
	err := s.ACL.Batch(ctx, func(tx *acl.Acl) error {
		for _, al := range req.Allows {
			if err := tx.Allow(ctx, names, al.Resources, al.Permissions); err != nil {
				return err
			}
		}
		for _, name := range names {
			if err := tx.CreateRole(ctx, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]models.Role, 0, len(names))
	for _, name := range names {
		role, err := s.role(ctx, name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, *role)
	}
	s.Logger.InfoContext(ctx, "roles updated", "roles", names, "by", GetUserIDFromContext(c))
	c.JSON(http.StatusCreated, out)
}

// HandleRemoveAllowsGin handles DELETE /roles/:roleName/allows with {resources, permissions}.
func (s *Server) HandleRemoveAllowsGin(c *gin.Context) {
	var req dto.RemoveAllowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if len(permission.Normalize(req.Resources)) == 0 {
		badRequest(c, "at least one resource is required")
		return
	}
	ctx := c.Request.Context()
	name := c.Param("roleName")
	if _, err := s.role(ctx, name); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ACL.RemoveAllow(ctx, name, req.Resources, req.Permissions); err != nil {
		s.respondError(c, err)
		return
	}
	role, err := s.role(ctx, name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// HandleDeleteRoleGin handles DELETE /roles/:roleName. The role is removed from every holder.
// The admin role cannot be deleted.
func (s *Server) HandleDeleteRoleGin(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("roleName")
	if name == models.AdminRole {
		s.respondError(c, fmt.Errorf("the %s role cannot be deleted: %w", models.AdminRole, errors.ErrForbidden))
		return
	}
	if _, err := s.role(ctx, name); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ACL.RemoveRole(ctx, name); err != nil {
		s.respondError(c, err)
		return
	}
	s.Logger.InfoContext(ctx, "role deleted", "role", name, "by", GetUserIDFromContext(c))
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "role deleted"})
}
