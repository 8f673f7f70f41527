package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/email"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/generates"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/registry"
	"github.com/legit-games/user-registry/store"
)

// memUsers is an in-memory UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Username == u.Username || strings.EqualFold(x.Email, u.Email) {
			return fmt.Errorf("user already exists: %w", errors.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", errors.ErrNotFound)
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *memUsers) List(ctx context.Context, opts store.ListOptions) ([]models.User, int64, error) {
	opts.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, *u)
	}
	if len(opts.Sort) > 0 && opts.Sort[0] == "-username" {
		sort.Slice(all, func(i, j int) bool { return all[i].Username > all[j].Username })
	}
	start := (opts.Page - 1) * opts.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (m *memUsers) update(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			fn(u)
			u.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("user not found: %w", errors.ErrNotFound)
}

func (m *memUsers) UpdateName(ctx context.Context, id string, name models.Name) (*models.User, error) {
	if err := m.update(id, func(u *models.User) { u.Name = name }); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *memUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	return m.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *memUsers) SetVerified(ctx context.Context, id string) error {
	return m.update(id, func(u *models.User) {
		now := time.Now().UTC()
		u.Verified, u.VerifiedAt = true, &now
	})
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user not found: %w", errors.ErrNotFound)
}

// memTokens is an in-memory TokenRepository with one-shot tokens.
type memTokens struct {
	mu     sync.Mutex
	seq    int
	tokens map[string][2]string // token -> kind, user id
}

func (m *memTokens) Issue(ctx context.Context, kind, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string][2]string{}
	}
	m.seq++
	tok := fmt.Sprintf("%s-token-%d", kind, m.seq)
	m.tokens[tok] = [2]string{kind, userID}
	return tok, nil
}

func (m *memTokens) Consume(ctx context.Context, kind, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tokens[token]
	if !ok || v[0] != kind {
		return "", fmt.Errorf("token not found: %w", errors.ErrNotFound)
	}
	delete(m.tokens, token)
	return v[1], nil
}

// memApps is an in-memory registry.ApplicationRepository.
type memApps struct {
	mu   sync.Mutex
	apps []models.Application
}

func (m *memApps) Create(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.Name == app.Name || a.Prefix == app.Prefix {
			return fmt.Errorf("application already exists: %w", errors.ErrConflict)
		}
	}
	app.ID = models.NewID()
	m.apps = append(m.apps, *app)
	return nil
}

func (m *memApps) Update(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.apps {
		if a.ID == app.ID {
			m.apps[i] = *app
			return nil
		}
	}
	return fmt.Errorf("application not found: %w", errors.ErrNotFound)
}

func (m *memApps) find(match func(models.Application) bool) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if match(a) {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("application not found: %w", errors.ErrNotFound)
}

func (m *memApps) Get(ctx context.Context, id string) (*models.Application, error) {
	return m.find(func(a models.Application) bool { return a.ID == id })
}

func (m *memApps) GetByName(ctx context.Context, name string) (*models.Application, error) {
	return m.find(func(a models.Application) bool { return a.Name == name })
}

func (m *memApps) GetByPrefix(ctx context.Context, prefix string) (*models.Application, error) {
	return m.find(func(a models.Application) bool { return a.Prefix == prefix })
}

func (m *memApps) List(ctx context.Context) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Application(nil), m.apps...), nil
}

func (m *memApps) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.apps {
		if a.ID == id {
			m.apps = append(m.apps[:i], m.apps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("application not found: %w", errors.ErrNotFound)
}

// recordingSender keeps every email it is asked to send.
type recordingSender struct {
	mu            sync.Mutex
	verifications []email.VerificationEmailData
	welcomes      []email.WelcomeEmailData
	resets        []email.PasswordResetEmailData
}

func (r *recordingSender) SendVerification(ctx context.Context, data email.VerificationEmailData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifications = append(r.verifications, data)
	return nil
}

func (r *recordingSender) SendWelcome(ctx context.Context, data email.WelcomeEmailData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomes = append(r.welcomes, data)
	return nil
}

func (r *recordingSender) SendPasswordReset(ctx context.Context, data email.PasswordResetEmailData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, data)
	return nil
}

func (r *recordingSender) SendEmail(ctx context.Context, data email.EmailData) error { return nil }
func (r *recordingSender) Health(ctx context.Context) error                          { return nil }
func (r *recordingSender) ProviderType() email.ProviderType                          { return email.ProviderTypeNoOp }

// testEnv is a server over in-memory stores, served by httptest.
type testEnv struct {
	srv    *Server
	router *gin.Engine
	users  *memUsers
	apps   *memApps
	mail   *recordingSender
	e      *httpexpect.Expect
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithBackend(t, acl.NewMemoryBackend())
}

func newTestEnvWithBackend(t *testing.T, backend acl.Backend) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &AppConfig{Env: "test"}
	cfg.applyDefaults()
	cfg.Email.BaseURL = "http://users.test"
	cfg.Import.Concurrency = 2

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := acl.New(backend)
	apps := &memApps{}
	users := &memUsers{}
	mail := &recordingSender{}
	srv := NewServer(cfg, Options{
		Users:    users,
		Tokens:   &memTokens{},
		ACL:      a,
		Registry: registry.New(apps, a, logger),
		Email:    mail,
		JWT:      generates.NewJWTAccessGenerate("", []byte("test-secret"), jwt.SigningMethodHS256, time.Hour),
		Logger:   logger,
	})
	router := NewGinEngine(srv)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testEnv{
		srv:    srv,
		router: router,
		users:  users,
		apps:   apps,
		mail:   mail,
		e:      httpexpect.Default(t, ts.URL),
	}
}

// mustUser creates a user with password "secret123".
func (env *testEnv) mustUser(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := env.srv.createAccount(context.Background(), newAccount{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// mustAdmin creates a user holding the admin role, granted every permission on every
// protected route.
func (env *testEnv) mustAdmin(t *testing.T, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	if err := env.srv.ACL.Allow(ctx, []string{models.AdminRole}, ProtectedResources(env.router), []string{"*"}); err != nil {
		t.Fatalf("grant admin: %v", err)
	}
	u := env.mustUser(t, username)
	if err := env.srv.ACL.AddUserRoles(ctx, u.ID, models.AdminRole); err != nil {
		t.Fatalf("assign admin: %v", err)
	}
	return u
}

func (env *testEnv) bearer(t *testing.T, u *models.User) string {
	t.Helper()
	tok, _, err := env.srv.JWT.Token(u)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}
