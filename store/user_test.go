package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
)

var userTestCounter int64 = time.Now().UnixNano()

func uniqueUserTestID(prefix string) string {
	userTestCounter++
	return fmt.Sprintf("%s-%d", prefix, userTestCounter)
}

func createTestUser(t *testing.T, s *UserStore) *models.User {
	t.Helper()
	name := uniqueUserTestID("user")
	u := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Name:         models.Name{First: "Test", Last: "User"},
	}
	if err := s.Create(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	t.Cleanup(func() { s.DB.Exec(`DELETE FROM users WHERE id = ?`, u.ID) })
	return u
}

func TestUserStore_CreateAndGet(t *testing.T) {
	s := NewUserStore(getTestGormDB(t))
	ctx := context.Background()
	u := createTestUser(t, s)

	got, err := s.GetByUsername(ctx, u.Username)
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != u.ID || got.Name.First != "Test" {
		t.Errorf("Expected %s/Test, got %s/%s", u.ID, got.ID, got.Name.First)
	}
	if _, err := s.GetByEmail(ctx, u.Email); err != nil {
		t.Errorf("GetByEmail: %v", err)
	}
	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_DuplicateUsername(t *testing.T) {
	s := NewUserStore(getTestGormDB(t))
	u := createTestUser(t, s)
	dup := &models.User{Username: u.Username, Email: uniqueUserTestID("other") + "@example.com", PasswordHash: "x"}
	if err := s.Create(context.Background(), dup); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
}

func TestUserStore_UpdateAndDelete(t *testing.T) {
	s := NewUserStore(getTestGormDB(t))
	ctx := context.Background()
	u := createTestUser(t, s)

	updated, err := s.UpdateName(ctx, u.ID, models.Name{First: "Ada", Last: "Lovelace"})
	if err != nil {
		t.Fatalf("UpdateName: %v", err)
	}
	if updated.Name.Full() != "Ada Lovelace" {
		t.Errorf("Expected Ada Lovelace, got %q", updated.Name.Full())
	}
	if err := s.SetVerified(ctx, u.ID); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if err := s.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, u.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserStore_ListPaging(t *testing.T) {
	s := NewUserStore(getTestGormDB(t))
	for i := 0; i < 3; i++ {
		createTestUser(t, s)
	}
	users, total, err := s.List(context.Background(), ListOptions{Fields: []string{"username"}, Sort: []string{"-createdAt"}, Limit: 2, Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total < 3 || len(users) != 2 {
		t.Fatalf("Expected 2 of at least 3 users, got %d of %d", len(users), total)
	}
	if users[0].Email != "" {
		t.Errorf("Expected email to be projected out, got %q", users[0].Email)
	}
}

func TestListOptions(t *testing.T) {
	o := ListOptions{Limit: 1000}
	o.Normalize()
	if o.Limit != MaxPageSize || o.Page != 1 {
		t.Errorf("Expected limit %d page 1, got %d/%d", MaxPageSize, o.Limit, o.Page)
	}
	o = ListOptions{Page: 1 << 62, Limit: MaxPageSize}
	o.Normalize()
	if o.Page != MaxPage {
		t.Errorf("Expected page clamped to %d, got %d", MaxPage, o.Page)
	}
	if offset := (o.Page - 1) * o.Limit; offset < 0 || offset > math.MaxInt32 {
		t.Errorf("Expected offset within int32, got %d", offset)
	}
	if _, err := projection([]string{"password_hash"}); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected ErrValidation for hidden column, got %v", err)
	}
	order, err := ordering([]string{"-name", "username"})
	if err != nil {
		t.Fatalf("ordering: %v", err)
	}
	if order != "first_name DESC, middle_name DESC, last_name DESC, username ASC" {
		t.Errorf("Unexpected order clause %q", order)
	}
}

func TestTokenStore_OneShot(t *testing.T) {
	db := getTestGormDB(t)
	s := NewTokenStore(db)
	ctx := context.Background()
	userID := uniqueUserTestID("tok-user")
	t.Cleanup(func() { db.Exec(`DELETE FROM one_time_tokens WHERE user_id = ?`, userID) })

	tok, err := s.Issue(ctx, TokenReset, userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Consume(ctx, TokenVerify, tok); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected wrong kind to be rejected, got %v", err)
	}
	got, err := s.Consume(ctx, TokenReset, tok)
	if err != nil || got != userID {
		t.Fatalf("Expected %s, got %s (%v)", userID, got, err)
	}
	if _, err := s.Consume(ctx, TokenReset, tok); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Expected second use to fail, got %v", err)
	}
}
