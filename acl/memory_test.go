package acl

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryBackend_SetSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	if err := m.Add(ctx, "users", "alice", "b", "a", "b"); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, _ := m.Get(ctx, "users", "alice")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected sorted [a b], got %v", got)
	}
	_ = m.Remove(ctx, "users", "alice", "a", "b")
	got, _ = m.Get(ctx, "users", "alice")
	if len(got) != 0 {
		t.Fatalf("expected empty after remove, got %v", got)
	}
	_ = m.Add(ctx, "users", "bob", "x")
	_ = m.Del(ctx, "users", "bob", "missing")
	got, _ = m.Get(ctx, "users", "bob")
	if len(got) != 0 {
		t.Fatalf("expected bob deleted, got %v", got)
	}
}

func TestMemoryBackend_AtomicRestoresOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	_ = m.Add(ctx, "meta", "roles", "admin")
	failed := errors.New("failed")
	err := m.Atomic(ctx, func(b Backend) error {
		_ = b.Add(ctx, "meta", "roles", "student")
		_ = b.Del(ctx, "meta", "roles")
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("expected callback error, got %v", err)
	}
	got, _ := m.Get(ctx, "meta", "roles")
	if len(got) != 1 || got[0] != "admin" {
		t.Fatalf("expected [admin] after rollback, got %v", got)
	}
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	a := New(NewMemoryBackend())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Allow(ctx, []string{"r"}, []string{"/x"}, []string{"get"})
			_ = a.AddUserRoles(ctx, "u", "r")
			_, _ = a.IsAllowed(ctx, "u", "/x", "get")
		}()
	}
	wg.Wait()
	ok, err := a.IsAllowed(ctx, "u", "/x", "get")
	if err != nil || !ok {
		t.Fatalf("expected allowed, got %v %v", ok, err)
	}
}
