package acl

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps ACL data in process memory. It is the default for tests and
// single-instance deployments.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]struct{}
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]map[string]struct{})}
}

func (m *MemoryBackend) Get(ctx context.Context, bucket, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(bucket, key), nil
}

func (m *MemoryBackend) Add(ctx context.Context, bucket, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(bucket, key, values)
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context, bucket, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(bucket, key, values)
	return nil
}

func (m *MemoryBackend) Del(ctx context.Context, bucket string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.del(bucket, keys)
	return nil
}

// Atomic runs fn with the backend locked. On error the previous state is restored.
func (m *MemoryBackend) Atomic(ctx context.Context, fn func(Backend) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.clone()
	if err := fn(memoryTx{m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *MemoryBackend) get(bucket, key string) []string {
	set := m.data[bucket][key]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryBackend) add(bucket, key string, values []string) {
	if len(values) == 0 {
		return
	}
	b, ok := m.data[bucket]
	if !ok {
		b = make(map[string]map[string]struct{})
		m.data[bucket] = b
	}
	set, ok := b[key]
	if !ok {
		set = make(map[string]struct{}, len(values))
		b[key] = set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
}

func (m *MemoryBackend) remove(bucket, key string, values []string) {
	set := m.data[bucket][key]
	for _, v := range values {
		delete(set, v)
	}
	if set != nil && len(set) == 0 {
		delete(m.data[bucket], key)
	}
}

func (m *MemoryBackend) del(bucket string, keys []string) {
	for _, k := range keys {
		delete(m.data[bucket], k)
	}
}

func (m *MemoryBackend) clone() map[string]map[string]map[string]struct{} {
	out := make(map[string]map[string]map[string]struct{}, len(m.data))
	for bucket, keys := range m.data {
		kb := make(map[string]map[string]struct{}, len(keys))
		for k, set := range keys {
			s := make(map[string]struct{}, len(set))
			for v := range set {
				s[v] = struct{}{}
			}
			kb[k] = s
		}
		out[bucket] = kb
	}
	return out
}

// memoryTx is the view handed to Atomic callbacks; the lock is already held.
type memoryTx struct{ m *MemoryBackend }

func (t memoryTx) Get(ctx context.Context, bucket, key string) ([]string, error) {
	return t.m.get(bucket, key), nil
}

func (t memoryTx) Add(ctx context.Context, bucket, key string, values ...string) error {
	t.m.add(bucket, key, values)
	return nil
}

func (t memoryTx) Remove(ctx context.Context, bucket, key string, values ...string) error {
	t.m.remove(bucket, key, values)
	return nil
}

func (t memoryTx) Del(ctx context.Context, bucket string, keys ...string) error {
	t.m.del(bucket, keys)
	return nil
}
