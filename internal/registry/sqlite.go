package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists registrations in a local SQLite database. This is the
// default backend for single-instance deployments.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provider_registrations (
	team_id     TEXT NOT NULL,
	provider    TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (team_id, provider, domain)
);
`

// NewSQLiteStore opens (and if necessary initializes) the database at dsn.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindByDomain(ctx context.Context, teamID, provider, domain string) (*Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT team_id, provider, provider_id, domain, created_at
		 FROM provider_registrations
		 WHERE team_id = ? AND provider = ? AND domain = ?`,
		teamID, provider, domain)
	return scanRegistration(row)
}

func (s *SQLiteStore) FindAny(ctx context.Context, teamID, provider string) (*Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT team_id, provider, provider_id, domain, created_at
		 FROM provider_registrations
		 WHERE team_id = ? AND provider = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		teamID, provider)
	return scanRegistration(row)
}

func (s *SQLiteStore) Upsert(ctx context.Context, reg *Registration) error {
	createdAt := reg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_registrations (team_id, provider, provider_id, domain, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (team_id, provider, domain)
		 DO UPDATE SET provider_id = excluded.provider_id`,
		reg.TeamID, reg.Provider, reg.ProviderID, reg.Domain, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRegistration(row *sql.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(&reg.TeamID, &reg.Provider, &reg.ProviderID, &reg.Domain, &reg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}
	return &reg, nil
}
