// Package registry onboards tenant applications: it stores their descriptors and installs
// their role grants into the ACL.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/permission"
)

// ApplicationRepository persists application descriptors.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	Get(ctx context.Context, id string) (*models.Application, error)
	GetByName(ctx context.Context, name string) (*models.Application, error)
	GetByPrefix(ctx context.Context, prefix string) (*models.Application, error)
	List(ctx context.Context) ([]models.Application, error)
	Delete(ctx context.Context, id string) error
}

// Registry implements application registration.
type Registry struct {
	apps   ApplicationRepository
	acl    *acl.Acl
	logger *slog.Logger
}

func New(apps ApplicationRepository, a *acl.Acl, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{apps: apps, acl: a, logger: logger}
}

var prefixPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Validate normalizes app in place and checks its descriptor.
func Validate(app *models.Application) error {
	app.Name = strings.TrimSpace(app.Name)
	app.Prefix = strings.Trim(strings.TrimSpace(app.Prefix), "/")
	app.Host = strings.TrimRight(strings.TrimSpace(app.Host), "/")
	if app.Name == "" {
		return fmt.Errorf("application name is required: %w", errors.ErrValidation)
	}
	if !prefixPattern.MatchString(app.Prefix) {
		return fmt.Errorf("application prefix %q must be a single path segment: %w", app.Prefix, errors.ErrValidation)
	}
	u, err := url.Parse(app.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("application host %q must be an http(s) URL: %w", app.Host, errors.ErrValidation)
	}
	for i, ra := range app.Roles {
		if len(permission.Normalize(ra.Roles)) == 0 {
			return fmt.Errorf("roles[%d]: at least one role is required: %w", i, errors.ErrValidation)
		}
		for j, al := range ra.Allows {
			if len(permission.Normalize(al.Resources)) == 0 || len(permission.Normalize(al.Permissions)) == 0 {
				return fmt.Errorf("roles[%d].allows[%d]: resources and permissions are required: %w", i, j, errors.ErrValidation)
			}
		}
	}
	app.AnonymousRoutes = permission.Normalize(app.AnonymousRoutes)
	app.AutoRoles = permission.Normalize(app.AutoRoles)
	return nil
}

// Register stores app and installs its grants. Registering a name that already exists
// updates that application, merging grants into the roles it names.
func (r *Registry) Register(ctx context.Context, app models.Application) (*models.Application, error) {
	if err := Validate(&app); err != nil {
		return nil, err
	}
	existing, err := r.apps.GetByName(ctx, app.Name)
	switch {
	case err == nil:
		return r.update(ctx, existing, app)
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	if err := r.checkPrefix(ctx, app.Prefix, ""); err != nil {
		return nil, err
	}
	if err := r.install(ctx, app); err != nil {
		return nil, err
	}
	app.ID = ""
	if err := r.apps.Create(ctx, &app); err != nil {
		return nil, err
	}
	r.logger.Info("application registered", "id", app.ID, "name", app.Name, "prefix", app.Prefix)
	return &app, nil
}

// Update re-installs grants (merging) and replaces the descriptor of application id.
func (r *Registry) Update(ctx context.Context, id string, app models.Application) (*models.Application, error) {
	if err := Validate(&app); err != nil {
		return nil, err
	}
	existing, err := r.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.update(ctx, existing, app)
}

func (r *Registry) update(ctx context.Context, existing *models.Application, app models.Application) (*models.Application, error) {
	if err := r.checkPrefix(ctx, app.Prefix, existing.ID); err != nil {
		return nil, err
	}
	if err := r.install(ctx, app); err != nil {
		return nil, err
	}
	app.ID = existing.ID
	app.CreatedAt = existing.CreatedAt
	if err := r.apps.Update(ctx, &app); err != nil {
		return nil, err
	}
	r.logger.Info("application updated", "id", app.ID, "name", app.Name, "prefix", app.Prefix)
	return &app, nil
}

// checkPrefix fails with ErrConflict when prefix belongs to an application other than ownerID.
// It runs before any grant is installed.
func (r *Registry) checkPrefix(ctx context.Context, prefix, ownerID string) error {
	other, err := r.apps.GetByPrefix(ctx, prefix)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != ownerID:
		return fmt.Errorf("prefix %q is used by application %s: %w", prefix, other.Name, errors.ErrConflict)
	}
	return nil
}

// install applies every grant of app as one ACL batch. Auto roles are created so that
// signups can be assigned them.
func (r *Registry) install(ctx context.Context, app models.Application) error {
	return r.acl.Batch(ctx, func(tx *acl.Acl) error {
		for _, ra := range app.Roles {
			for _, al := range ra.Allows {
				if err := tx.Allow(ctx, ra.Roles, al.Resources, al.Permissions); err != nil {
					return err
				}
			}
			if len(ra.Allows) == 0 {
				for _, role := range permission.Normalize(ra.Roles) {
					if err := tx.CreateRole(ctx, role); err != nil {
						return err
					}
				}
			}
		}
		for _, role := range app.AutoRoles {
			if err := tx.CreateRole(ctx, role); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes the application record. Roles and grants it installed stay, since other
// applications may share them.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.apps.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("application removed", "id", id)
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.Application, error) {
	return r.apps.Get(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]models.Application, error) {
	return r.apps.List(ctx)
}

// AutoRoles returns the union of auto-assigned roles over every application.
func (r *Registry) AutoRoles(ctx context.Context) ([]string, error) {
	apps, err := r.apps.List(ctx)
	if err != nil {
		return nil, err
	}
	var all []string
	for _, app := range apps {
		all = append(all, app.AutoRoles...)
	}
	return permission.Normalize(all), nil
}

// Resolve finds the application whose prefix is the first segment of path and returns it
// with the remainder of the path. Paths holding dot segments or backslashes are rejected,
// so the path checked against grants is the path the upstream receives.
func (r *Registry) Resolve(ctx context.Context, path string) (*models.Application, string, error) {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." || strings.Contains(seg, `\`) {
			return nil, "", fmt.Errorf("path %q is not canonical: %w", path, errors.ErrValidation)
		}
	}
	trimmed := strings.TrimPrefix(path, "/")
	prefix, rest, _ := strings.Cut(trimmed, "/")
	if prefix == "" {
		return nil, "", fmt.Errorf("no application for %q: %w", path, errors.ErrNotFound)
	}
	app, err := r.apps.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, "", err
	}
	return app, "/" + rest, nil
}

// IsAnonymous reports whether path, relative to the application prefix, matches one of the
// application's anonymous route patterns.
func IsAnonymous(app *models.Application, path string) bool {
	for _, pattern := range app.AnonymousRoutes {
		if permission.Match(pattern, path) {
			return true
		}
	}
	return false
}
