// Package seed bootstraps a fresh deployment: the admin role with every permission on every
// protected route, and an administrator account holding it.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/permission"
	"golang.org/x/crypto/bcrypt"
)

// Users is the part of the user store seeding needs.
type Users interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

// Options defines the administrator to seed.
type Options struct {
	Username  string
	Email     string
	Password  string
	Resources []string // resources the admin role is granted, usually every protected route
	Logger    *slog.Logger
}

// Run grants the admin role and makes sure the administrator exists and holds it. Running it
// again only adds grants for resources that are new.
func Run(ctx context.Context, users Users, a *acl.Acl, opts Options) (*models.User, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resources := permission.Normalize(opts.Resources)
	if len(resources) == 0 {
		return nil, fmt.Errorf("seed: no resources to grant: %w", errors.ErrValidation)
	}
	if err := a.Allow(ctx, []string{models.AdminRole}, resources, []string{permission.Wildcard}); err != nil {
		return nil, err
	}

	u, err := users.GetByUsername(ctx, opts.Username)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "admin user exists", "username", u.Username, "id", u.ID)
	case errors.Is(err, errors.ErrNotFound):
		if u, err = createAdmin(ctx, users, opts); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "admin user created", "username", u.Username, "id", u.ID)
	default:
		return nil, err
	}

	if err := a.AddUserRoles(ctx, u.ID, models.AdminRole); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "admin role granted", "resources", len(resources))
	return u, nil
}

func createAdmin(ctx context.Context, users Users, opts Options) (*models.User, error) {
	if opts.Password == "" {
		return nil, fmt.Errorf("seed: admin.password is required to create %q: %w", opts.Username, errors.ErrValidation)
	}
	emailAddr := strings.ToLower(strings.TrimSpace(opts.Email))
	if emailAddr == "" {
		return nil, fmt.Errorf("seed: admin.email is required to create %q: %w", opts.Username, errors.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed: hash admin password: %w", err)
	}
	now := time.Now().UTC()
	u := &models.User{
		Username:     opts.Username,
		Email:        emailAddr,
		PasswordHash: string(hash),
		Verified:     true,
		VerifiedAt:   &now,
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
