package migrate

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestRunDB_UpAndReset(t *testing.T) {
	db := openSQLite(t)

	if err := RunDB(db, Options{Driver: "sqlite", Command: "up"}); err != nil {
		t.Fatalf("up: %v", err)
	}
	for _, table := range []string{"users", "applications", "one_time_tokens", "acl_entries"} {
		if !tableExists(t, db, table) {
			t.Fatalf("table %s missing after up", table)
		}
	}

	// up is idempotent
	if err := RunDB(db, Options{Driver: "sqlite"}); err != nil {
		t.Fatalf("second up: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO acl_entries (bucket, key, value) VALUES ('users', 'u1', 'admin')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO acl_entries (bucket, key, value) VALUES ('users', 'u1', 'admin')`); err == nil {
		t.Fatal("duplicate acl entry must violate the primary key")
	}

	if err := RunDB(db, Options{Driver: "sqlite", Command: "reset"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if tableExists(t, db, "users") {
		t.Fatal("users should be dropped after reset")
	}
}

func TestRun_NoopWithoutDSN(t *testing.T) {
	if err := Run(Options{Driver: "postgres"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestRunDB_UnknownCommand(t *testing.T) {
	db := openSQLite(t)
	if err := RunDB(db, Options{Driver: "sqlite", Command: "sideways"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestDriverName(t *testing.T) {
	cases := map[string]string{"postgres": "postgres", "PG": "postgres", "sqlite3": "sqlite", "sqlite": "sqlite"}
	for in, want := range cases {
		if got := driverName(in); got != want {
			t.Fatalf("driverName(%q) = %q, want %q", in, got, want)
		}
	}
}
