package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pliu/chatvideo/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

var _ store.Store = (*SQLStore)(nil)

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// A single connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		profile_pic TEXT,
		bio TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL REFERENCES users(id),
		receiver_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT,
		attachment TEXT,
		message_type TEXT NOT NULL DEFAULT 'text',
		location_lat REAL,
		location_lng REAL,
		reply_to_message_id INTEGER REFERENCES messages(id),
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		read_at DATETIME,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		edited_at DATETIME,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id);

	CREATE TABLE IF NOT EXISTS message_reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL REFERENCES messages(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		reaction_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (message_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS chat_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		avatar TEXT,
		created_by INTEGER NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER NOT NULL REFERENCES chat_groups(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		role TEXT NOT NULL DEFAULT 'member',
		joined_at DATETIME NOT NULL,
		PRIMARY KEY (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS group_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL REFERENCES chat_groups(id),
		sender_id INTEGER NOT NULL REFERENCES users(id),
		content TEXT,
		attachment TEXT,
		message_type TEXT NOT NULL DEFAULT 'text',
		location_lat REAL,
		location_lng REAL,
		reply_to_message_id INTEGER REFERENCES group_messages(id),
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		edited_at DATETIME,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_group_messages_group ON group_messages (group_id);

	CREATE TABLE IF NOT EXISTS group_message_reactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL REFERENCES group_messages(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		reaction_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (message_id, user_id, reaction_type)
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "INTEGER", "BIGINT")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMPTZ")
		query = strings.ReplaceAll(query, "REAL", "DOUBLE PRECISION")
	}

	_, err := s.db.Exec(query)
	return err
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notFound maps sql.ErrNoRows onto store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// inClause returns "?, ?, ?" for n placeholders.
func inClause(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...any) error
}
