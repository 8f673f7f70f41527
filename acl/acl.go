// Package acl resolves user permissions from role membership. Users hold roles; roles hold
// grants of permissions on resource patterns. Every decision reads the backend, nothing is cached.
package acl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/permission"
)

// Acl implements role assignment, grants and permission checks over a Backend.
type Acl struct {
	backend Backend
}

// New returns an Acl stored in backend.
func New(backend Backend) *Acl {
	return &Acl{backend: backend}
}

// storeErr marks a backend failure so the request boundary can tell it apart from a denial.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: acl %s: %w", errors.ErrSystemFailure, op, err)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Batch runs fn against a view of the ACL that the backend applies as one unit when it
// supports Atomic. Other backends run fn directly.
func (a *Acl) Batch(ctx context.Context, fn func(*Acl) error) error {
	tx, ok := a.backend.(Atomic)
	if !ok {
		return fn(a)
	}
	return tx.Atomic(ctx, func(b Backend) error {
		return fn(&Acl{backend: b})
	})
}

// CreateRole registers a role without grants. Existing roles are left untouched.
func (a *Acl) CreateRole(ctx context.Context, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("role name is required: %w", errors.ErrValidation)
	}
	if err := a.backend.Add(ctx, bucketMeta, metaRolesKey, role); err != nil {
		return storeErr("create role", err)
	}
	return nil
}

// Roles lists every known role, sorted.
func (a *Acl) Roles(ctx context.Context) ([]string, error) {
	roles, err := a.backend.Get(ctx, bucketMeta, metaRolesKey)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	return orEmpty(roles), nil
}

// RoleExists reports whether role has been created. Names are case-sensitive.
func (a *Acl) RoleExists(ctx context.Context, role string) (bool, error) {
	roles, err := a.Roles(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// Allow grants permissions on resources to each role, creating roles as needed.
// Grants are merged into what the role already holds.
func (a *Acl) Allow(ctx context.Context, roles, resources, permissions []string) error {
	roles = permission.Normalize(roles)
	resources = permission.Normalize(resources)
	permissions = permission.Normalize(permissions)
	if len(roles) == 0 || len(resources) == 0 || len(permissions) == 0 {
		return fmt.Errorf("allow needs roles, resources and permissions: %w", errors.ErrValidation)
	}
	for _, role := range roles {
		if err := a.backend.Add(ctx, bucketMeta, metaRolesKey, role); err != nil {
			return storeErr("allow", err)
		}
		if err := a.backend.Add(ctx, bucketResources, role, resources...); err != nil {
			return storeErr("allow", err)
		}
		for _, res := range resources {
			if err := a.backend.Add(ctx, allowsBucket(res), role, permissions...); err != nil {
				return storeErr("allow", err)
			}
		}
	}
	return nil
}

// RemoveAllow revokes permissions on resources from role. With no permissions the
// resources are removed from the role entirely.
func (a *Acl) RemoveAllow(ctx context.Context, role string, resources, permissions []string) error {
	resources = permission.Normalize(resources)
	permissions = permission.Normalize(permissions)
	for _, res := range resources {
		if len(permissions) > 0 {
			if err := a.backend.Remove(ctx, allowsBucket(res), role, permissions...); err != nil {
				return storeErr("remove allow", err)
			}
			left, err := a.backend.Get(ctx, allowsBucket(res), role)
			if err != nil {
				return storeErr("remove allow", err)
			}
			if len(left) > 0 {
				continue
			}
		} else if err := a.backend.Del(ctx, allowsBucket(res), role); err != nil {
			return storeErr("remove allow", err)
		}
		if err := a.backend.Remove(ctx, bucketResources, role, res); err != nil {
			return storeErr("remove allow", err)
		}
	}
	return nil
}

// RoleGrants returns the grants of role: resource pattern -> permissions.
func (a *Acl) RoleGrants(ctx context.Context, role string) (map[string][]string, error) {
	resources, err := a.backend.Get(ctx, bucketResources, role)
	if err != nil {
		return nil, storeErr("role grants", err)
	}
	grants := make(map[string][]string, len(resources))
	for _, res := range resources {
		perms, err := a.backend.Get(ctx, allowsBucket(res), role)
		if err != nil {
			return nil, storeErr("role grants", err)
		}
		grants[res] = perms
	}
	return grants, nil
}

// RemoveRole deletes role, its grants, and its assignment to every user.
func (a *Acl) RemoveRole(ctx context.Context, role string) error {
	resources, err := a.backend.Get(ctx, bucketResources, role)
	if err != nil {
		return storeErr("remove role", err)
	}
	for _, res := range resources {
		if err := a.backend.Del(ctx, allowsBucket(res), role); err != nil {
			return storeErr("remove role", err)
		}
	}
	if err := a.backend.Del(ctx, bucketResources, role); err != nil {
		return storeErr("remove role", err)
	}
	users, err := a.backend.Get(ctx, bucketRoles, role)
	if err != nil {
		return storeErr("remove role", err)
	}
	for _, u := range users {
		if err := a.backend.Remove(ctx, bucketUsers, u, role); err != nil {
			return storeErr("remove role", err)
		}
	}
	if err := a.backend.Del(ctx, bucketRoles, role); err != nil {
		return storeErr("remove role", err)
	}
	if err := a.backend.Remove(ctx, bucketMeta, metaRolesKey, role); err != nil {
		return storeErr("remove role", err)
	}
	return nil
}

// AddUserRoles assigns roles to user. Callers check that the roles exist.
func (a *Acl) AddUserRoles(ctx context.Context, user string, roles ...string) error {
	roles = permission.Normalize(roles)
	if user == "" || len(roles) == 0 {
		return nil
	}
	if err := a.backend.Add(ctx, bucketUsers, user, roles...); err != nil {
		return storeErr("add user roles", err)
	}
	for _, role := range roles {
		if err := a.backend.Add(ctx, bucketRoles, role, user); err != nil {
			return storeErr("add user roles", err)
		}
	}
	return nil
}

// RemoveUserRoles unassigns roles from user.
func (a *Acl) RemoveUserRoles(ctx context.Context, user string, roles ...string) error {
	if err := a.backend.Remove(ctx, bucketUsers, user, roles...); err != nil {
		return storeErr("remove user roles", err)
	}
	for _, role := range roles {
		if err := a.backend.Remove(ctx, bucketRoles, role, user); err != nil {
			return storeErr("remove user roles", err)
		}
	}
	return nil
}

// RemoveUser drops every role assignment held by user.
func (a *Acl) RemoveUser(ctx context.Context, user string) error {
	roles, err := a.UserRoles(ctx, user)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if err := a.backend.Remove(ctx, bucketRoles, role, user); err != nil {
			return storeErr("remove user", err)
		}
	}
	if err := a.backend.Del(ctx, bucketUsers, user); err != nil {
		return storeErr("remove user", err)
	}
	return nil
}

// UserRoles lists the roles assigned to user.
func (a *Acl) UserRoles(ctx context.Context, user string) ([]string, error) {
	roles, err := a.backend.Get(ctx, bucketUsers, user)
	if err != nil {
		return nil, storeErr("user roles", err)
	}
	return orEmpty(roles), nil
}

// RoleUsers lists the users holding role.
func (a *Acl) RoleUsers(ctx context.Context, role string) ([]string, error) {
	users, err := a.backend.Get(ctx, bucketRoles, role)
	if err != nil {
		return nil, storeErr("role users", err)
	}
	return orEmpty(users), nil
}

// HasRole reports whether user holds role.
func (a *Acl) HasRole(ctx context.Context, user, role string) (bool, error) {
	roles, err := a.UserRoles(ctx, user)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// IsAllowed reports whether any role of user grants perm, or the wildcard, on a resource
// pattern matching resource. Resources no role mentions are denied. On a backend error the
// result is false together with the error.
func (a *Acl) IsAllowed(ctx context.Context, user, resource, perm string) (bool, error) {
	var allowed bool
	err := a.eachMatchingGrant(ctx, user, resource, func(perms []string) bool {
		allowed = permission.Grants(perms, perm)
		return allowed
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// AllowedPermissions returns the union of permissions user holds on resource.
func (a *Acl) AllowedPermissions(ctx context.Context, user, resource string) ([]string, error) {
	var all []string
	err := a.eachMatchingGrant(ctx, user, resource, func(perms []string) bool {
		all = append(all, perms...)
		return false
	})
	if err != nil {
		return nil, err
	}
	out := permission.Normalize(all)
	sort.Strings(out)
	return out, nil
}

// eachMatchingGrant calls fn with the permission set of every (role, pattern) grant of user
// whose pattern matches resource, until fn returns true.
func (a *Acl) eachMatchingGrant(ctx context.Context, user, resource string, fn func([]string) bool) error {
	if user == "" || resource == "" {
		return nil
	}
	roles, err := a.UserRoles(ctx, user)
	if err != nil {
		return err
	}
	for _, role := range roles {
		patterns, err := a.backend.Get(ctx, bucketResources, role)
		if err != nil {
			return storeErr("is allowed", err)
		}
		for _, pattern := range patterns {
			if !permission.Match(pattern, resource) {
				continue
			}
			perms, err := a.backend.Get(ctx, allowsBucket(pattern), role)
			if err != nil {
				return storeErr("is allowed", err)
			}
			if fn(perms) {
				return nil
			}
		}
	}
	return nil
}
