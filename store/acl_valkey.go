package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/legit-games/user-registry/acl"
	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyACLBackend keeps each ACL set in a Valkey (Redis-compatible) set.
type ValkeyACLBackend struct {
	client valkey.Client
	prefix string
}

// NewValkeyACLBackend connects to addr. prefix namespaces keys.
func NewValkeyACLBackend(addr string, prefix string) (*ValkeyACLBackend, error) {
	if addr == "" {
		return nil, fmt.Errorf("valkey address is required")
	}
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}, DisableCache: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	if prefix == "" {
		prefix = "acl:"
	}
	return &ValkeyACLBackend{client: cli, prefix: prefix}, nil
}

func (b *ValkeyACLBackend) key(bucket, key string) string { return b.prefix + bucket + "@" + key }

func (b *ValkeyACLBackend) Get(ctx context.Context, bucket, key string) ([]string, error) {
	values, err := b.client.Do(ctx, b.client.B().Smembers().Key(b.key(bucket, key)).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(values)
	return values, nil
}

func (b *ValkeyACLBackend) Add(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return b.client.Do(ctx, b.client.B().Sadd().Key(b.key(bucket, key)).Member(values...).Build()).Error()
}

func (b *ValkeyACLBackend) Remove(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return b.client.Do(ctx, b.client.B().Srem().Key(b.key(bucket, key)).Member(values...).Build()).Error()
}

func (b *ValkeyACLBackend) Del(ctx context.Context, bucket string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, b.key(bucket, k))
	}
	return b.client.Do(ctx, b.client.B().Del().Key(full...).Build()).Error()
}

// Close closes the Valkey connection.
func (b *ValkeyACLBackend) Close() {
	b.client.Close()
}

// Atomic buffers the writes of fn and applies them in one MULTI/EXEC block. Reads inside fn
// see the buffered writes. Nothing is sent when fn fails.
func (b *ValkeyACLBackend) Atomic(ctx context.Context, fn func(acl.Backend) error) error {
	tx := &valkeyTx{b: b}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.ops) == 0 {
		return nil
	}
	return b.client.Dedicated(func(c valkey.DedicatedClient) error {
		cmds := make(valkey.Commands, 0, len(tx.ops)+2)
		cmds = append(cmds, c.B().Multi().Build())
		for _, op := range tx.ops {
			switch op.kind {
			case opAdd:
				cmds = append(cmds, c.B().Sadd().Key(op.key).Member(op.values...).Build())
			case opRemove:
				cmds = append(cmds, c.B().Srem().Key(op.key).Member(op.values...).Build())
			case opDel:
				cmds = append(cmds, c.B().Del().Key(op.key).Build())
			}
		}
		cmds = append(cmds, c.B().Exec().Build())
		for _, resp := range c.DoMulti(ctx, cmds...) {
			if err := resp.Error(); err != nil {
				return err
			}
		}
		return nil
	})
}

type valkeyOpKind int

const (
	opAdd valkeyOpKind = iota
	opRemove
	opDel
)

type valkeyOp struct {
	kind   valkeyOpKind
	key    string
	values []string
}

// valkeyTx records writes for ValkeyACLBackend.Atomic.
type valkeyTx struct {
	b   *ValkeyACLBackend
	ops []valkeyOp
}

func (t *valkeyTx) Get(ctx context.Context, bucket, key string) ([]string, error) {
	values, err := t.b.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	full := t.b.key(bucket, key)
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	for _, op := range t.ops {
		if op.key != full {
			continue
		}
		switch op.kind {
		case opAdd:
			for _, v := range op.values {
				set[v] = struct{}{}
			}
		case opRemove:
			for _, v := range op.values {
				delete(set, v)
			}
		case opDel:
			clear(set)
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (t *valkeyTx) Add(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) > 0 {
		t.ops = append(t.ops, valkeyOp{kind: opAdd, key: t.b.key(bucket, key), values: values})
	}
	return nil
}

func (t *valkeyTx) Remove(ctx context.Context, bucket, key string, values ...string) error {
	if len(values) > 0 {
		t.ops = append(t.ops, valkeyOp{kind: opRemove, key: t.b.key(bucket, key), values: values})
	}
	return nil
}

func (t *valkeyTx) Del(ctx context.Context, bucket string, keys ...string) error {
	for _, k := range keys {
		t.ops = append(t.ops, valkeyOp{kind: opDel, key: t.b.key(bucket, k)})
	}
	return nil
}
