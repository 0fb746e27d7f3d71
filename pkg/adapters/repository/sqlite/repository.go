package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

// SQLiteRepository stores links, users, issued tokens and deactivation
// schedules in one SQLite (or libsql) database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	const op = "sqlite.NewSQLiteRepository"

	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	if driverName == "sqlite" {
		// One writer; conditional updates stay serialised and shared-cache
		// memory databases never report SQLITE_LOCKED.
		db.SetMaxOpenConns(1)
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		if !strings.Contains(dbURL, "mode=memory") && !strings.Contains(dbURL, ":memory:") {
			_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		destination TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		visit_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at);

	CREATE TABLE IF NOT EXISTS schedules (
		link_id TEXT PRIMARY KEY,
		fire_at INTEGER NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		lease_until INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_fire_at ON schedules(fire_at);
	`
	_, err := db.Exec(query)
	return err
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ports.LinkRepository     = (*SQLiteRepository)(nil)
	_ ports.UserRepository     = (*SQLiteRepository)(nil)
	_ ports.LedgerRepository   = (*SQLiteRepository)(nil)
	_ ports.ScheduleRepository = (*SQLiteRepository)(nil)
)
