package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/store"
)

// HandleListUsersGin handles GET /users. Options come from the query string; a JSON body, when
// present, overrides them.
func (s *Server) HandleListUsersGin(c *gin.Context) {
	var req dto.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid list options: "+err.Error())
		return
	}
	if c.Request.ContentLength > 0 && strings.HasPrefix(c.ContentType(), "application/json") {
		var body dto.ListUsersRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid list options: "+err.Error())
			return
		}
		req = mergeListRequest(req, body)
	}

	opts := store.ListOptions{
		Fields: splitList(req.Fields),
		Sort:   splitList(req.Sort),
		Limit:  req.Limit,
		Page:   req.Page,
	}
	opts.Normalize()
	users, total, err := s.Users.List(c.Request.Context(), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserListResponse(users, total, opts.Limit, opts.Page))
}

func mergeListRequest(base, override dto.ListUsersRequest) dto.ListUsersRequest {
	if override.Fields != "" {
		base.Fields = override.Fields
	}
	if override.Sort != "" {
		base.Sort = override.Sort
	}
	if override.Limit != 0 {
		base.Limit = override.Limit
	}
	if override.Page != 0 {
		base.Page = override.Page
	}
	return base
}

// splitList splits a comma or space separated list.
func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}

// HandleGetUserGin handles GET /users/:userId.
func (s *Server) HandleGetUserGin(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := s.Users.GetByID(ctx, c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	roles, err := s.ACL.UserRoles(ctx, u.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	resp := dto.FromUser(u)
	resp.Roles = roles
	c.JSON(http.StatusOK, resp)
}

// HandleUpdateUserGin handles PUT /users/:userId. Only the name parts change.
func (s *Server) HandleUpdateUserGin(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	u, err := s.Users.UpdateName(c.Request.Context(), c.Param("userId"), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromUser(u))
}

// HandleDeleteUserGin handles DELETE /users/:userId. The user's role assignments are removed
// first, so a store failure leaves the account intact.
func (s *Server) HandleDeleteUserGin(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ensureNotLastAdmin(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.ACL.RemoveUser(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Users.Delete(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	s.Logger.InfoContext(ctx, "user deleted", "user_id", userID, "by", GetUserIDFromContext(c))
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "user deleted"})
}

// ensureNotLastAdmin refuses to remove the only account holding the admin role.
func (s *Server) ensureNotLastAdmin(ctx context.Context, userID string) error {
	admin, err := s.ACL.HasRole(ctx, userID, models.AdminRole)
	if err != nil || !admin {
		return err
	}
	holders, err := s.ACL.RoleUsers(ctx, models.AdminRole)
	if err != nil {
		return err
	}
	if len(holders) <= 1 {
		return fmt.Errorf("the last %s cannot be deleted: %w", models.AdminRole, errors.ErrForbidden)
	}
	return nil
}

// HandleChangePasswordGin handles PUT /users/:userId/password. Callers changing their own
// password must present the current one.
func (s *Server) HandleChangePasswordGin(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "newPassword must be between 6 and 72 characters")
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("userId")
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if GetUserIDFromContext(c) == userID && !checkPassword(u.PasswordHash, req.OldPassword) {
		s.respondError(c, fmt.Errorf("current password is incorrect: %w", errors.ErrValidation))
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "password updated"})
}
