// Package storage opens the local SQLite database, applies the embedded
// goose migrations in strict order, and vends the repository set the rest
// of the application works through. The store is a single local-process
// resource; there is no cross-process sharing.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/nostrchat/internal/query"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/channels"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/contacts"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/events"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/messages"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/profiles"
	"github.com/dmitrijs2005/nostrchat/internal/repositories/tags"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/nostrchat/internal/storage/migrations"
)

// Store bundles the open database and its repositories.
type Store struct {
	db *sql.DB

	Events   events.Repository
	Tags     tags.Repository
	Profiles profiles.Repository
	Channels channels.Repository
	Contacts contacts.Repository
	Messages messages.Repository
	Query    *query.Query
}

// DSN builds a connection string for a database file with the pragmas this
// store depends on: WAL so readers never block on unrelated writers,
// foreign keys for the event→tag cascade, and a busy timeout under the
// bounded retry in dbx.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if necessary) the database at dsn and brings the
// schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return NewStore(db), nil
}

// NewStore wires repositories over an already-migrated database. Exposed
// for tests that manage the connection themselves.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Events:   events.NewSQLiteRepository(db),
		Tags:     tags.NewSQLiteRepository(db),
		Profiles: profiles.NewSQLiteRepository(db),
		Channels: channels.NewSQLiteRepository(db),
		Contacts: contacts.NewSQLiteRepository(db),
		Messages: messages.NewSQLiteRepository(db),
		Query:    query.New(db),
	}
}

// RunMigrations applies the embedded migrations in order. Re-running is
// idempotent; skipping or reordering is impossible by construction (goose
// tracks the version in the database).
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// SchemaVersion reports the current goose migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, s.db)
}

// Stats reports row counts per entity, for diagnostics.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	tables := []string{"event", "tag", "relay_seen", "profile_cache",
		"channel_cache", "contact", "message", "message_delivery"}

	stats := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table)
		if err := row.Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// DB exposes the raw handle for the ingest service's transactions.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }
