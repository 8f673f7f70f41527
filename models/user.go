package models

import (
	"strings"
	"time"
)

// Name holds the profile name parts of a user.
type Name struct {
	First  string `json:"first" gorm:"column:first_name"`
	Middle string `json:"middle" gorm:"column:middle_name"`
	Last   string `json:"last" gorm:"column:last_name"`
}

// Full joins the non-empty name parts with single spaces.
func (n Name) Full() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.First, n.Middle, n.Last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// User is an identity record. The password hash is a bcrypt hash, which carries its own salt.
type User struct {
	ID           string     `gorm:"column:id;primaryKey" json:"id"`
	Username     string     `gorm:"column:username;uniqueIndex" json:"username"`
	Email        string     `gorm:"column:email;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
	Name         Name       `gorm:"embedded" json:"name"`
	Verified     bool       `gorm:"column:verified" json:"verified"`
	VerifiedAt   *time.Time `gorm:"column:verified_at" json:"verifiedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// UserFields maps the public field names accepted by list projections and sorting to columns.
var UserFields = map[string]string{
	"id":        "id",
	"username":  "username",
	"email":     "email",
	"name":      "first_name, middle_name, last_name",
	"verified":  "verified",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}
