package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/legit-games/user-registry/acl"
	"github.com/tidwall/buntdb"
)

// BuntACLBackend keeps ACL sets in an embedded buntdb file; each set is a JSON array value.
type BuntACLBackend struct {
	db *buntdb.DB
}

// NewBuntACLBackend opens path; ":memory:" keeps the data in memory only.
func NewBuntACLBackend(path string) (*BuntACLBackend, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &BuntACLBackend{db: db}, nil
}

func (b *BuntACLBackend) Close() error { return b.db.Close() }

func (b *BuntACLBackend) Get(ctx context.Context, bucket, key string) (values []string, err error) {
	err = b.db.View(func(tx *buntdb.Tx) error {
		values, err = buntTx{tx}.Get(ctx, bucket, key)
		return err
	})
	return values, err
}

func (b *BuntACLBackend) Add(ctx context.Context, bucket, key string, values ...string) error {
	return b.db.Update(func(tx *buntdb.Tx) error { return buntTx{tx}.Add(ctx, bucket, key, values...) })
}

func (b *BuntACLBackend) Remove(ctx context.Context, bucket, key string, values ...string) error {
	return b.db.Update(func(tx *buntdb.Tx) error { return buntTx{tx}.Remove(ctx, bucket, key, values...) })
}

func (b *BuntACLBackend) Del(ctx context.Context, bucket string, keys ...string) error {
	return b.db.Update(func(tx *buntdb.Tx) error { return buntTx{tx}.Del(ctx, bucket, keys...) })
}

// Atomic runs fn in one read-write transaction; buntdb rolls it back when fn fails.
func (b *BuntACLBackend) Atomic(ctx context.Context, fn func(acl.Backend) error) error {
	return b.db.Update(func(tx *buntdb.Tx) error { return fn(buntTx{tx}) })
}

type buntTx struct{ tx *buntdb.Tx }

func buntKey(bucket, key string) string { return bucket + "\x00" + key }

func (t buntTx) Get(ctx context.Context, bucket, key string) ([]string, error) {
	raw, err := t.tx.Get(buntKey(bucket, key))
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (t buntTx) put(bucket, key string, values []string) error {
	if len(values) == 0 {
		_, err := t.tx.Delete(buntKey(bucket, key))
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil
		}
		return err
	}
	sort.Strings(values)
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, _, err = t.tx.Set(buntKey(bucket, key), string(raw), nil)
	return err
}

func (t buntTx) Add(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	current, err := t.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(current)+len(values))
	for _, v := range current {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			current = append(current, v)
		}
	}
	return t.put(bucket, key, current)
}

func (t buntTx) Remove(ctx context.Context, bucket, key string, values ...string) error {
	current, err := t.Get(ctx, bucket, key)
	if err != nil || len(current) == 0 {
		return err
	}
	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		drop[v] = struct{}{}
	}
	kept := current[:0]
	for _, v := range current {
		if _, ok := drop[v]; !ok {
			kept = append(kept, v)
		}
	}
	return t.put(bucket, key, kept)
}

func (t buntTx) Del(ctx context.Context, bucket string, keys ...string) error {
	for _, k := range keys {
		if _, err := t.tx.Delete(buntKey(bucket, k)); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
	}
	return nil
}
