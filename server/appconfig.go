package server

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/legit-games/user-registry/email"
)

// EnvPrefix prefixes every environment variable read into the configuration.
const EnvPrefix = "USERREG_"

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env      string         `koanf:"env"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	ACL      ACLConfig      `koanf:"acl"`
	JWT      JWTConfig      `koanf:"jwt"`
	Session  SessionConfig  `koanf:"session"`
	Email    email.Config   `koanf:"email"`
	Import   ImportConfig   `koanf:"import"`
	Admin    AdminConfig    `koanf:"admin"`
	Migrate  MigrateConfig  `koanf:"migrate"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// ACLConfig selects the ACL storage engine: sql (default), memory, valkey or buntdb.
type ACLConfig struct {
	Backend string       `koanf:"backend"`
	Valkey  ValkeyConfig `koanf:"valkey"`
	BuntDB  BuntDBConfig `koanf:"buntdb"`
}

type ValkeyConfig struct {
	Addr   string `koanf:"addr"`
	Prefix string `koanf:"prefix"`
}

type BuntDBConfig struct {
	Path string `koanf:"path"`
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

type SessionConfig struct {
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	Secure     bool          `koanf:"secure"`
}

type ImportConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// AdminConfig describes the account created by the seed command.
type AdminConfig struct {
	Username string `koanf:"username"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

type MigrateConfig struct {
	OnStart bool `koanf:"on_start"`
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
)

// GetConfig loads and returns the singleton AppConfig.
func GetConfig() *AppConfig {
	cfgOnce.Do(func() {
		cfgInst = LoadConfig()
	})
	return cfgInst
}

// LoadConfig reads a fresh AppConfig. Loading order:
// 1) config/config.yaml (optional)
// 2) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 3) Environment variables with prefix USERREG_ mapped using __ as nested separator, e.g. USERREG_DATABASE__DSN
//
// Files are read only when APP_CONFIG_FILES is 1 or true, which keeps tests isolated.
func LoadConfig() *AppConfig {
	k := koanf.New(".")
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	loadFiles := strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "1") || strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "true")
	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "local"
	}
	if loadFiles {
		for _, name := range []string{"config.yaml", "config." + envName + ".yaml"} {
			path := filepath.Join(configDir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				slog.Warn("config: failed loading file", "path", path, "error", err)
			}
		}
	}
	_ = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)

	var c AppConfig
	if err := k.Unmarshal("", &c); err != nil {
		slog.Warn("config: unmarshal error", "error", err)
	}
	if c.Env == "" {
		c.Env = envName
	}
	c.applyDefaults()
	return &c
}

// envKey maps USERREG_DATABASE__DSN to database.dsn.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *AppConfig) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.ACL.Backend == "" {
		c.ACL.Backend = "sql"
	}
	if c.ACL.BuntDB.Path == "" {
		c.ACL.BuntDB.Path = ":memory:"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = time.Hour
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "userreg_session"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 2 * time.Hour
	}
	if c.Import.Concurrency <= 0 {
		c.Import.Concurrency = 4
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Email.AppName == "" {
		c.Email.AppName = "User Registry"
	}
}

// IsLocal reports whether the service runs in a developer environment.
func (c *AppConfig) IsLocal() bool {
	return c == nil || c.Env == "" || c.Env == "local" || c.Env == "test"
}

// NewLogger returns the process logger: text output locally, JSON elsewhere.
func (c *AppConfig) NewLogger() *slog.Logger {
	if c.IsLocal() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
