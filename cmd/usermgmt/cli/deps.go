package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/email"
	"github.com/legit-games/user-registry/generates"
	"github.com/legit-games/user-registry/registry"
	"github.com/legit-games/user-registry/server"
	"github.com/legit-games/user-registry/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// deps are the collaborators of a running server.
type deps struct {
	db      *gorm.DB
	users   *store.UserStore
	tokens  *store.TokenStore
	acl     *acl.Acl
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDB(cfg *server.AppConfig) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required (USERREG_DATABASE__DSN)")
	}
	if d := strings.ToLower(cfg.Database.Driver); d != "postgres" && d != "postgresql" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	level := logger.Warn
	if cfg.IsLocal() {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// openDeps opens the database and the configured ACL backend.
func openDeps(cfg *server.AppConfig, log *slog.Logger) (*deps, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	d := &deps{
		db:     db,
		users:  store.NewUserStore(db),
		tokens: store.NewTokenStore(db),
	}
	d.closers = append(d.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	backend, err := openACLBackend(cfg, db)
	if err != nil {
		d.Close()
		return nil, err
	}
	if c, ok := backend.(interface{ Close() }); ok {
		d.closers = append(d.closers, c.Close)
	}
	if c, ok := backend.(interface{ Close() error }); ok {
		d.closers = append(d.closers, func() { _ = c.Close() })
	}
	d.acl = acl.New(backend)
	log.Info("acl backend ready", "backend", cfg.ACL.Backend)
	return d, nil
}

func openACLBackend(cfg *server.AppConfig, db *gorm.DB) (acl.Backend, error) {
	switch strings.ToLower(cfg.ACL.Backend) {
	case "sql", "":
		return store.NewSQLACLBackend(db), nil
	case "valkey", "redis":
		return store.NewValkeyACLBackend(cfg.ACL.Valkey.Addr, cfg.ACL.Valkey.Prefix)
	case "buntdb":
		return store.NewBuntACLBackend(cfg.ACL.BuntDB.Path)
	case "memory":
		return acl.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown acl backend %q", cfg.ACL.Backend)
	}
}

// newServer builds the HTTP server and its router over d.
func newServer(cfg *server.AppConfig, d *deps, log *slog.Logger) (*server.Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required (USERREG_JWT__SECRET)")
	}
	sender, err := email.Factory(cfg.Email)
	if err != nil {
		return nil, err
	}
	return server.NewServer(cfg, server.Options{
		Users:    d.users,
		Tokens:   d.tokens,
		ACL:      d.acl,
		Registry: registry.New(store.NewApplicationStore(d.db), d.acl, log),
		Email:    sender,
		JWT:      generates.NewJWTAccessGenerate("", []byte(cfg.JWT.Secret), jwt.SigningMethodHS256, cfg.JWT.TTL),
		Logger:   log,
	}), nil
}

// purgeTokens deletes expired one-time tokens every interval until ctx is done.
func purgeTokens(ctx context.Context, tokens *store.TokenStore, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx)
			if err != nil {
				log.Warn("purge expired tokens failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired tokens purged", "count", n)
			}
		}
	}
}
