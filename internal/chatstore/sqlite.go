package chatstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_moments/internal/assistant"
)

// tsLayout is fixed-width so created_at sorts as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps chats in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath is ~/.go_moments/chats.db.
func DefaultSQLitePath() string {
	return filepath.Join(os.Getenv("HOME"), ".go_moments", "chats.db")
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("chatstore: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("chatstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatstore: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chats (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		path       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		messages   TEXT NOT NULL
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS chats_user_created ON chats (user_id, created_at DESC)`)
	return err
}

// Save inserts or updates a chat. A chat owned by another user is left
// untouched and reported as ErrNotFound.
func (s *SQLiteStore) Save(ctx context.Context, c Chat) error {
	msgs, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("chatstore: encode messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO chats (id, user_id, title, path, created_at, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			path = excluded.path,
			messages = excluded.messages
		WHERE chats.user_id = excluded.user_id`,
		c.ID, c.UserID, c.Title, c.Path, c.CreatedAt.UTC().Format(tsLayout), string(msgs))
	if err != nil {
		return fmt.Errorf("chatstore: save %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("chatstore: save %s: %w", c.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a chat with its messages.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Chat, error) {
	var (
		c       Chat
		created string
		msgs    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, path, created_at, messages FROM chats WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Path, &created, &msgs)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("chatstore: get %s: %w", id, err)
	}
	if c.CreatedAt, err = time.Parse(tsLayout, created); err != nil {
		return Chat{}, fmt.Errorf("chatstore: created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(msgs), &c.Messages); err != nil {
		return Chat{}, fmt.Errorf("chatstore: decode messages: %w", err)
	}
	if c.Messages == nil {
		c.Messages = []assistant.Message{}
	}
	return c, nil
}

// List returns the user's chats, newest first.
func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, path, created_at FROM chats
		 WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`, userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("chatstore: list: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var (
			c       Chat
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Path, &created); err != nil {
			return nil, fmt.Errorf("chatstore: scan: %w", err)
		}
		if c.CreatedAt, err = time.Parse(tsLayout, created); err != nil {
			return nil, fmt.Errorf("chatstore: created_at: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Delete removes a chat owned by userID.
func (s *SQLiteStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("chatstore: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("chatstore: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
