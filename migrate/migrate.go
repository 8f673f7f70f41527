// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// migrationsFS holds embedded SQL migrations in migrate/sql.
//
//go:embed sql/*.sql
var migrationsFS embed.FS

// Options defines how to run migrations.
type Options struct {
	Driver  string       // postgres or sqlite
	DSN     string       // connection string; a file path or :memory: for sqlite
	Command string       // up, down, status, version, up-to, down-to, redo, reset
	Target  int64        // used with up-to/down-to
	Logger  *slog.Logger // optional logger
}

// Run opens the database and executes opts.Command. If Driver or DSN are empty, it is a no-op.
func Run(opts Options) error {
	if strings.TrimSpace(opts.Driver) == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}
	db, err := sql.Open(driverName(opts.Driver), opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return RunDB(db, opts)
}

// RunDB executes opts.Command on an open database. opts.DSN is ignored.
func RunDB(db *sql.DB, opts Options) error {
	if opts.Logger != nil {
		goose.SetLogger(slog.NewLogLogger(opts.Logger.Handler(), slog.LevelInfo))
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(dialect(opts.Driver)); err != nil {
		return err
	}

	dir := "sql"
	switch strings.ToLower(strings.TrimSpace(opts.Command)) {
	case "", "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "version":
		return goose.Version(db, dir)
	case "up-to":
		return goose.UpTo(db, dir, opts.Target)
	case "down-to":
		return goose.DownTo(db, dir, opts.Target)
	case "redo":
		return goose.Redo(db, dir)
	case "reset":
		return goose.Reset(db, dir)
	default:
		return fmt.Errorf("unknown migration command: %s", opts.Command)
	}
}

// driverName maps a configured driver to its database/sql name.
func driverName(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "postgresql", "pg":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

func dialect(driver string) string {
	if driverName(driver) == "sqlite" {
		return "sqlite3"
	}
	return "postgres"
}
