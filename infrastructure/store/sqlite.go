package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-thurstone/internal/ports"
)

const backendSQLite = "sqlite"

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore persists sessions in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

// Save implements ports.SessionStore.
func (s *SQLiteStore) Save(ctx context.Context, session *ports.Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return ports.NewStoreError(backendSQLite, "save", sessionID(session), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		session.ID, data,
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
		session.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return ports.NewStoreError(backendSQLite, "save", session.ID, err)
	}
	return nil
}

// Load implements ports.SessionStore.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*ports.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(backendSQLite, id)
	}
	if err != nil {
		return nil, ports.NewStoreError(backendSQLite, "load", id, err)
	}
	session, err := decodeSession(data)
	if err != nil {
		return nil, ports.NewStoreError(backendSQLite, "load", id, err)
	}
	return session, nil
}

// Delete implements ports.SessionStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return ports.NewStoreError(backendSQLite, "delete", id, err)
	}
	return nil
}

// List implements ports.SessionStore.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, ports.NewStoreError(backendSQLite, "list", "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ports.NewStoreError(backendSQLite, "list", "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError(backendSQLite, "list", "", err)
	}
	return ids, nil
}

// Close implements ports.SessionStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
