// Package chatstore persists chat conversations per user.
package chatstore

import (
	"context"
	"errors"
	"time"

	"github.com/anatolykoptev/go_moments/internal/assistant"
	"github.com/anatolykoptev/go_moments/internal/engine"
)

// ErrNotFound is returned when a chat does not exist or is not owned by the caller.
var ErrNotFound = errors.New("chat not found")

const titleMaxRunes = 100

// Chat is a stored conversation.
type Chat struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	UserID    string              `json:"userId"`
	CreatedAt time.Time           `json:"createdAt"`
	Path      string              `json:"path"`
	Messages  []assistant.Message `json:"messages,omitempty"`
}

// State returns the assistant state held by the chat.
func (c Chat) State() assistant.AIState {
	msgs := c.Messages
	if msgs == nil {
		msgs = []assistant.Message{}
	}
	return assistant.AIState{ChatID: c.ID, Messages: msgs}
}

// FromState builds the stored form of a conversation. The title is the first
// message's first 100 characters.
func FromState(state assistant.AIState, userID string, now time.Time) Chat {
	var title string
	if len(state.Messages) > 0 {
		title = engine.TruncateRunes(state.Messages[0].Content, titleMaxRunes, "")
	}
	return Chat{
		ID:        state.ChatID,
		Title:     title,
		UserID:    userID,
		CreatedAt: now.UTC(),
		Path:      "/chat/" + state.ChatID,
		Messages:  state.Messages,
	}
}

// Store persists chats. Save is an upsert that keeps the first CreatedAt.
// List returns the user's chats newest first, without messages.
type Store interface {
	Save(ctx context.Context, chat Chat) error
	Get(ctx context.Context, id string) (Chat, error)
	List(ctx context.Context, userID string, limit int) ([]Chat, error)
	Delete(ctx context.Context, id, userID string) error
	Close() error
}

// List limits: limit <= 0 gives DefaultListLimit, larger values clamp to MaxListLimit.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func listLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// Open picks Postgres when databaseURL is set, SQLite otherwise.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		s, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, err
	}
	return s, nil
}
