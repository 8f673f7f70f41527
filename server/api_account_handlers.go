package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/email"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/store"
)

// resetTokenMinutes matches the reset TTL of store.NewTokenStore.
const resetTokenMinutes = 60

// newAccount describes a user to create.
type newAccount struct {
	Username string
	Email    string
	Password string
	Name     models.Name
}

// createAccount stores a new user, assigns the auto roles of every registered application and
// returns the created user. When the roles cannot be assigned the user is removed again.
func (s *Server) createAccount(ctx context.Context, acc newAccount) (*models.User, error) {
	hash, err := hashPassword(acc.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     strings.TrimSpace(acc.Username),
		Email:        strings.ToLower(strings.TrimSpace(acc.Email)),
		PasswordHash: hash,
		Name:         acc.Name,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	if err := s.assignAutoRoles(ctx, u.ID); err != nil {
		if derr := s.Users.Delete(ctx, u.ID); derr != nil {
			s.Logger.ErrorContext(ctx, "failed to remove user after role assignment error", "user_id", u.ID, "error", derr)
		}
		return nil, err
	}
	s.Logger.InfoContext(ctx, "user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (s *Server) assignAutoRoles(ctx context.Context, userID string) error {
	if s.Registry == nil {
		return nil
	}
	roles, err := s.Registry.AutoRoles(ctx)
	if err != nil {
		return err
	}
	return s.ACL.AddUserRoles(ctx, userID, roles...)
}

// sendVerification issues a verification token for u and mails it. Failures are logged; the
// user can ask for a new token later.
func (s *Server) sendVerification(ctx context.Context, u *models.User) {
	if s.Tokens == nil {
		return
	}
	tok, err := s.Tokens.Issue(ctx, store.TokenVerify, u.ID)
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to issue verification token", "user_id", u.ID, "error", err)
		return
	}
	err = s.Email.SendVerification(ctx, email.VerificationEmailData{
		To:       u.Email,
		Username: u.Username,
		Token:    tok,
		Link:     s.link("/verify/" + tok),
		AppName:  s.Config.Email.AppName,
	})
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to send verification email", "user_id", u.ID, "error", err)
	}
}

func (s *Server) link(path string) string {
	return strings.TrimRight(s.Config.Email.BaseURL, "/") + path
}

// HandleSignupGin handles POST /signup.
func (s *Server) HandleSignupGin(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid signup request: "+err.Error())
		return
	}
	u, err := s.createAccount(c.Request.Context(), newAccount{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.sendVerification(c.Request.Context(), u)
	c.JSON(http.StatusCreated, dto.FromUser(u))
}

// HandleLoginGin handles POST /login. It returns a bearer token and also starts a session.
func (s *Server) HandleLoginGin(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	ctx := c.Request.Context()
	u, err := s.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, errors.ErrNotFound) && strings.Contains(req.Username, "@") {
		u, err = s.Users.GetByEmail(ctx, req.Username)
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		s.respondError(c, err)
		return
	}
	if u == nil || !checkPassword(u.PasswordHash, req.Password) {
		s.respondError(c, fmt.Errorf("invalid username or password: %w", errors.ErrUnauthorized))
		return
	}

	token, exp, err := s.JWT.Token(u)
	if err != nil {
		s.respondError(c, fmt.Errorf("sign token: %w", err))
		return
	}
	if err := startSession(ctx, c.Writer, c.Request, Identity{UserID: u.ID, Username: u.Username}); err != nil {
		s.Logger.WarnContext(ctx, "failed to start session", "user_id", u.ID, "error", err)
	}
	resp := dto.FromUser(u)
	if roles, err := s.ACL.UserRoles(ctx, u.ID); err == nil {
		resp.Roles = roles
	}
	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: exp,
		User:      resp,
	})
}

// HandleLogoutGin handles POST /logout.
func (s *Server) HandleLogoutGin(c *gin.Context) {
	if err := endSession(c.Request.Context(), c.Writer, c.Request); err != nil {
		s.Logger.WarnContext(c.Request.Context(), "failed to destroy session", "error", err)
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

// HandleSessionGin handles GET /session: the user of the current session with their roles.
func (s *Server) HandleSessionGin(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := s.sessionIdentity(ctx, c.Writer, c.Request)
	if !ok {
		s.respondError(c, fmt.Errorf("no active session: %w", errors.ErrUnauthorized))
		return
	}
	u, err := s.Users.GetByID(ctx, id.UserID)
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

// HandleVerifyEmailGin handles GET /verify/:token.
func (s *Server) HandleVerifyEmailGin(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := s.Tokens.Consume(ctx, store.TokenVerify, c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Users.SetVerified(ctx, userID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "email verified"})
}

// HandleRequestVerificationGin handles POST /verify: a new verification email for the caller.
func (s *Server) HandleRequestVerificationGin(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := s.Users.GetByID(ctx, GetUserIDFromContext(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if u.Verified {
		c.JSON(http.StatusOK, dto.MessageResponse{Message: "email already verified"})
		return
	}
	s.sendVerification(ctx, u)
	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "verification email sent"})
}

// HandleForgotPasswordGin handles POST /forgot. The reply does not reveal whether the address
// belongs to an account.
func (s *Server) HandleForgotPasswordGin(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "valid email is required")
		return
	}
	ctx := c.Request.Context()
	reply := dto.MessageResponse{Message: "If an account exists with this email, a reset link has been sent."}

	u, err := s.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusOK, reply)
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	tok, err := s.Tokens.Issue(ctx, store.TokenReset, u.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	err = s.Email.SendPasswordReset(ctx, email.PasswordResetEmailData{
		To:           u.Email,
		Username:     u.Username,
		Token:        tok,
		Link:         s.link("/reset/" + tok),
		ExpiresInMin: resetTokenMinutes,
		AppName:      s.Config.Email.AppName,
		SupportEmail: s.Config.Email.SupportEmail,
	})
	if err != nil {
		s.Logger.ErrorContext(ctx, "failed to send password reset email", "user_id", u.ID, "error", err)
	}
	c.JSON(http.StatusOK, reply)
}

// HandleResetPasswordGin handles POST /reset/:token.
func (s *Server) HandleResetPasswordGin(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "password must be between 6 and 72 characters")
		return
	}
	ctx := c.Request.Context()
	userID, err := s.Tokens.Consume(ctx, store.TokenReset, c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		s.respondError(c, err)
		return
	}
	s.Logger.InfoContext(ctx, "password reset", "user_id", userID)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "password updated"})
}

// HandleHealthGin handles GET /healthz. It reads the ACL store so an outage shows as 503.
func (s *Server) HandleHealthGin(c *gin.Context) {
	if _, err := s.ACL.Roles(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
