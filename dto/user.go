package dto

import (
	"time"

	"github.com/legit-games/user-registry/models"
)

// UserResponse represents a user in API responses. The password hash never leaves the server.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username,omitempty"`
	Email      string      `json:"email,omitempty"`
	Name       models.Name `json:"name"`
	FullName   string      `json:"fullName,omitempty"`
	Verified   bool        `json:"verified"`
	VerifiedAt *time.Time  `json:"verifiedAt,omitempty"`
	Roles      []string    `json:"roles,omitempty"`
	CreatedAt  *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time  `json:"updatedAt,omitempty"`
}

// FromUser converts a models.User to UserResponse. Timestamps left zero by a projected
// list query are omitted.
func FromUser(u *models.User) UserResponse {
	resp := UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		FullName:   u.Name.Full(),
		Verified:   u.Verified,
		VerifiedAt: u.VerifiedAt,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		resp.CreatedAt = &created
	}
	if !u.UpdatedAt.IsZero() {
		updated := u.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// FromUsers converts a slice of models.User to a slice of UserResponse.
func FromUsers(users []models.User) []UserResponse {
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = FromUser(&users[i])
	}
	return responses
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Docs  []UserResponse `json:"docs"`
	Total int64          `json:"total"`
	Limit int            `json:"limit"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// NewUserListResponse builds a page; Pages is at least 1 so an empty listing still has a page.
func NewUserListResponse(users []models.User, total int64, limit, page int) UserListResponse {
	pages := 1
	if limit > 0 && total > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return UserListResponse{
		Docs:  FromUsers(users),
		Total: total,
		Limit: limit,
		Page:  page,
		Pages: pages,
	}
}

// ListUsersRequest carries listing options from the query string or a JSON body.
// Fields and Sort are comma separated; a leading "-" on a sort field orders descending.
type ListUsersRequest struct {
	Fields string `form:"fields" json:"fields"`
	Sort   string `form:"sort" json:"sort"`
	Limit  int    `form:"limit" json:"limit"`
	Page   int    `form:"page" json:"page"`
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Username string      `json:"username" binding:"required,max=255,excludesall= /"`
	Email    string      `json:"email" binding:"required,email,max=255"`
	Password string      `json:"password" binding:"required,min=6,max=72"`
	Name     models.Name `json:"name"`
}

// LoginRequest is the body of POST /login. Username may also be an email address.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UpdateUserRequest is the body of PUT /users/:userId. Only name parts are editable.
type UpdateUserRequest struct {
	Name models.Name `json:"name"`
}

// ChangePasswordRequest is the body of PUT /users/:userId/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

// ForgotPasswordRequest is the body of POST /forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body of POST /reset/:token.
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// MessageResponse is the body of informational replies and of every error.
type MessageResponse struct {
	Message string `json:"message"`
}
