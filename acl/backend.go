package acl

import "context"

// Buckets used by Acl. Every bucket maps a key to a set of strings.
const (
	bucketMeta      = "meta"
	bucketUsers     = "users"     // user -> roles
	bucketRoles     = "roles"     // role -> users
	bucketResources = "resources" // role -> resource patterns
	allowsPrefix    = "allows_"   // allows_<resource>: role -> permissions

	metaRolesKey = "roles"
)

func allowsBucket(resource string) string { return allowsPrefix + resource }

// Backend is the storage engine behind an Acl. Values under a key behave as a set:
// adding an existing value and removing a missing one are no-ops.
type Backend interface {
	// Get returns the values stored under bucket/key, sorted. A missing key yields an empty slice.
	Get(ctx context.Context, bucket, key string) ([]string, error)
	// Add inserts values into the set at bucket/key.
	Add(ctx context.Context, bucket, key string, values ...string) error
	// Remove deletes values from the set at bucket/key.
	Remove(ctx context.Context, bucket, key string, values ...string) error
	// Del drops whole keys from a bucket.
	Del(ctx context.Context, bucket string, keys ...string) error
}

// Atomic is implemented by backends that can apply a group of writes as one unit.
// fn receives a Backend bound to the unit; returning an error discards its writes.
type Atomic interface {
	Atomic(ctx context.Context, fn func(Backend) error) error
}
