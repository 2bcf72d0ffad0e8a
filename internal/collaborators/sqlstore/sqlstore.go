// Package sqlstore is a reference implementation of collaborators.SQLClient
// backed by an embedded SQLite database. It exists to demonstrate the
// collaborator contract end-to-end in tests and local development; the
// core never imports or depends on it, matching spec §1's scoping of the
// SQL client as an out-of-scope external collaborator.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fitcore/aigateway/internal/collaborators"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		subject TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
}

// Store is a SQLite-backed collaborators.SQLClient.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies
// migrations. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// PutProfile writes (or replaces) the profile blob for subject. Test/seed
// helper; the core only ever reads through GetProfile.
func (s *Store) PutProfile(ctx context.Context, subject string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (subject, payload) VALUES (?, ?)
		 ON CONFLICT(subject) DO UPDATE SET payload = excluded.payload`,
		subject, payload)
	return err
}

// GetProfile implements collaborators.SQLClient.
func (s *Store) GetProfile(ctx context.Context, subject string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM profiles WHERE subject = ?`, subject).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, collaborators.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get profile: %w", err)
	}
	return payload, nil
}

var _ collaborators.SQLClient = (*Store)(nil)
