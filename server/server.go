package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/email"
	"github.com/legit-games/user-registry/generates"
	"github.com/legit-games/user-registry/importer"
	"github.com/legit-games/user-registry/models"
	"github.com/legit-games/user-registry/registry"
	"github.com/legit-games/user-registry/store"
)

// UserRepository persists user records. store.UserStore implements it.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, opts store.ListOptions) ([]models.User, int64, error)
	UpdateName(ctx context.Context, id string, name models.Name) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TokenRepository issues one-shot verification and reset tokens. store.TokenStore implements it.
type TokenRepository interface {
	Issue(ctx context.Context, kind, userID string) (string, error)
	Consume(ctx context.Context, kind, token string) (string, error)
}

// Options carries the collaborators of a Server.
type Options struct {
	Users    UserRepository
	Tokens   TokenRepository
	ACL      *acl.Acl
	Registry *registry.Registry
	Email    email.Sender
	JWT      *generates.JWTAccessGenerate
	Logger   *slog.Logger
	// Transport is used by the gateway to reach application hosts. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Server serves the user registry REST API.
type Server struct {
	Config    *AppConfig
	Users     UserRepository
	Tokens    TokenRepository
	ACL       *acl.Acl
	Registry  *registry.Registry
	Email     email.Sender
	JWT       *generates.JWTAccessGenerate
	Logger    *slog.Logger
	Transport http.RoundTripper

	importer *importer.Importer
	// reserved holds first path segments taken by local routes.
	reserved map[string]bool
}

// NewServer creates a server from cfg and its collaborators. Missing optional collaborators
// fall back to a console email sender and the default logger.
func NewServer(cfg *AppConfig, opts Options) *Server {
	if cfg == nil {
		cfg = &AppConfig{}
		cfg.applyDefaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sender := opts.Email
	if sender == nil {
		sender = email.NewConsoleSender(logger)
	}
	srv := &Server{
		Config:    cfg,
		Users:     opts.Users,
		Tokens:    opts.Tokens,
		ACL:       opts.ACL,
		Registry:  opts.Registry,
		Email:     sender,
		JWT:       opts.JWT,
		Logger:    logger,
		Transport: opts.Transport,
	}
	srv.importer = importer.New(importer.CreatorFunc(srv.createImported), cfg.Import.Concurrency, logger)
	return srv
}
