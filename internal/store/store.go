// Package store persists the client's local state: director credentials,
// the username and the last playback position per media source.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const usernameKey = "username"

// Store is a handle on the local sqlite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open prepares a SQLite database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS director_credentials (
			room TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS playback_positions (
			source TEXT PRIMARY KEY,
			position_seconds REAL NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_director_credentials_created ON director_credentials(created_at DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveDirectorCredential records that this client created room and returns
// the credential token.
func (s *Store) SaveDirectorCredential(room string) (string, error) {
	if room == "" {
		return "", errors.New("room code is empty")
	}
	token := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO director_credentials (room, token, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(room) DO UPDATE SET token = excluded.token, created_at = excluded.created_at`,
		room, token, s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("save director credential: %w", err)
	}
	return token, nil
}

// IsDirector reports whether a credential for exactly this room code exists.
func (s *Store) IsDirector(room string) (bool, error) {
	if room == "" {
		return false, nil
	}
	var token string
	err := s.db.QueryRow(`SELECT token FROM director_credentials WHERE room = ?`, room).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load director credential: %w", err)
	}
	return true, nil
}

// Username returns the stored username, or "" when none was set.
func (s *Store) Username() (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, usernameKey).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load username: %w", err)
	}
	return name, nil
}

// SetUsername stores the username.
func (s *Store) SetUsername(name string) error {
	if name == "" {
		return errors.New("username is empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		usernameKey, name,
	)
	if err != nil {
		return fmt.Errorf("save username: %w", err)
	}
	return nil
}

// SavePosition records the playback position for a media source.
func (s *Store) SavePosition(source string, seconds float64) error {
	if source == "" {
		return errors.New("source is empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO playback_positions (source, position_seconds, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET position_seconds = excluded.position_seconds, updated_at = excluded.updated_at`,
		source, seconds, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Position returns the stored position for source. ok is false when nothing
// was stored.
func (s *Store) Position(source string) (seconds float64, ok bool, err error) {
	err = s.db.QueryRow(`SELECT position_seconds FROM playback_positions WHERE source = ?`, source).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load position: %w", err)
	}
	return seconds, true, nil
}
