package chatstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_moments/internal/assistant"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore keeps chats in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool and runs schema migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("chat postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schema/" + e.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Save inserts or updates a chat. A chat owned by another user is left
// untouched and reported as ErrNotFound.
func (s *PostgresStore) Save(ctx context.Context, c Chat) error {
	msgs, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("chatstore: encode messages: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO chats (id, user_id, title, path, created_at, messages)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			path = EXCLUDED.path,
			messages = EXCLUDED.messages
		WHERE chats.user_id = EXCLUDED.user_id`,
		c.ID, c.UserID, c.Title, c.Path, c.CreatedAt.UTC(), string(msgs))
	if err != nil {
		return fmt.Errorf("chatstore: save %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a chat with its messages.
func (s *PostgresStore) Get(ctx context.Context, id string) (Chat, error) {
	var (
		c    Chat
		msgs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, path, created_at, messages FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Path, &c.CreatedAt, &msgs)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("chatstore: get %s: %w", id, err)
	}
	if err := json.Unmarshal(msgs, &c.Messages); err != nil {
		return Chat{}, fmt.Errorf("chatstore: decode messages: %w", err)
	}
	if c.Messages == nil {
		c.Messages = []assistant.Message{}
	}
	return c, nil
}

// List returns the user's chats, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string, limit int) ([]Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, path, created_at FROM chats
		 WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`, userID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("chatstore: list: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Path, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatstore: scan: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Delete removes a chat owned by userID.
func (s *PostgresStore) Delete(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("chatstore: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
