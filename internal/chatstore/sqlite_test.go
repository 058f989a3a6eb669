package chatstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_moments/internal/assistant"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testState(id string, contents ...string) assistant.AIState {
	st := assistant.AIState{ChatID: id}
	for i, c := range contents {
		role := assistant.RoleUser
		if i%2 == 1 {
			role = assistant.RoleAssistant
		}
		st.Messages = append(st.Messages, assistant.Message{ID: id + "-m" + string(rune('0'+i)), Role: role, Content: c})
	}
	return st
}

func TestFromState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	long := strings.Repeat("ж", 150)
	c := FromState(testState("c1", long, "reply"), "u1", now)

	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "/chat/c1", c.Path)
	assert.Equal(t, strings.Repeat("ж", 100), c.Title)
	assert.Equal(t, time.UTC, c.CreatedAt.Location())
	assert.True(t, c.CreatedAt.Equal(now))

	empty := FromState(assistant.AIState{ChatID: "c2"}, "u1", now)
	assert.Empty(t, empty.Title)
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)

	chat := FromState(testState("c1", "boxing", "Pick one"), "u1", created)
	require.NoError(t, s.Save(ctx, chat))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, chat.Title, got.Title)
	assert.Equal(t, chat.Path, got.Path)
	assert.Equal(t, chat.Messages, got.Messages)
	assert.True(t, got.CreatedAt.Equal(created))

	// Upsert keeps the first CreatedAt and replaces messages.
	updated := FromState(testState("c1", "boxing", "Pick one", "knockouts"), "u1", created.Add(time.Hour))
	require.NoError(t, s.Save(ctx, updated))
	got, err = s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 3)
	assert.True(t, got.CreatedAt.Equal(created))

	st := got.State()
	assert.Equal(t, "c1", st.ChatID)
	assert.Len(t, st.Messages, 3)
}

func TestSQLiteStore_SaveKeepsOwner(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, FromState(testState("c1", "alice secret"), "alice", time.Now())))

	err := s.Save(ctx, FromState(testState("c1", "overwrite"), "mallory", time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "alice secret", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "alice secret", got.Messages[0].Content)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, listLimit(0))
	assert.Equal(t, DefaultListLimit, listLimit(-1))
	assert.Equal(t, 7, listLimit(7))
	assert.Equal(t, MaxListLimit, listLimit(MaxListLimit))
	assert.Equal(t, MaxListLimit, listLimit(10_000))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	_, err := openTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_List(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, FromState(testState("old", "first"), "u1", base)))
	require.NoError(t, s.Save(ctx, FromState(testState("mid", "second"), "u1", base.Add(500*time.Millisecond))))
	require.NoError(t, s.Save(ctx, FromState(testState("new", "third"), "u1", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, FromState(testState("other", "x"), "u2", base.Add(time.Hour))))

	chats, err := s.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "new", chats[0].ID)
	assert.Equal(t, "mid", chats[1].ID)
	assert.Equal(t, "old", chats[2].ID)
	assert.Nil(t, chats[0].Messages)

	chats, err = s.List(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	chats, err = s.List(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Empty(t, chats)
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, FromState(testState("c1", "hi"), "u1", time.Now())))

	assert.ErrorIs(t, s.Delete(ctx, "c1", "intruder"), ErrNotFound)
	require.NoError(t, s.Delete(ctx, "c1", "u1"))
	assert.ErrorIs(t, s.Delete(ctx, "c1", "u1"), ErrNotFound)
	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenPicksSQLite(t *testing.T) {
	s, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}
