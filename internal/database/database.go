package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"salontime/internal/availability"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger
	engine *availability.Engine
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewDB opens (or creates) the sqlite database at path and applies the schema.
// Every transaction starts IMMEDIATE so the booking recheck and insert hold the
// write lock together.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return &DB{
		DB:     db,
		logger: logger,
		engine: availability.NewEngine(availability.DefaultGridMinutes),
	}, nil
}

func dsn(path string, inMemory bool) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	if !inMemory {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS salons (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            name TEXT NOT NULL,
            timezone TEXT NOT NULL DEFAULT 'UTC',
            business_hours TEXT NOT NULL DEFAULT '{}',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS services (
            id TEXT PRIMARY KEY,
            salon_id TEXT NOT NULL REFERENCES salons(id),
            name TEXT NOT NULL,
            duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
            price INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            salon_id TEXT NOT NULL REFERENCES salons(id),
            service_id TEXT NOT NULL REFERENCES services(id),
            service_name TEXT NOT NULL DEFAULT '',
            client_id TEXT NOT NULL,
            staff_id TEXT NOT NULL DEFAULT '',
            booking_date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            notes TEXT NOT NULL DEFAULT '',
            total_amount INTEGER NOT NULL DEFAULT 0,
            reminder_sent_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS waitlist (
            id TEXT PRIMARY KEY,
            salon_id TEXT NOT NULL REFERENCES salons(id),
            service_id TEXT NOT NULL REFERENCES services(id),
            client_id TEXT NOT NULL,
            staff_id TEXT NOT NULL DEFAULT '',
            preferred_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'waiting',
            notified_at DATETIME,
            expires_at DATETIME,
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_services_salon ON services(salon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_salon_date ON bookings(salon_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_client ON bookings(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_lookup ON waitlist(salon_id, service_id, preferred_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_client ON waitlist(client_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_waiting_once
            ON waitlist(client_id, salon_id, service_id, preferred_date) WHERE status = 'waiting'`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func rowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
