package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/notificationd/internal/notification"
)

func text(s string) *string { return &s }

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "history.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.True(t, s.Enabled())

	last, err := s.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), last)

	all, err := s.LoadAll(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	first := notification.Envelope{
		ID:        3,
		User:      "alice",
		Title:     text("Build"),
		Body:      text("ok\n"),
		Tags:      []string{"ci", "main"},
		Timestamp: ts,
	}
	second := notification.Envelope{ID: 4, User: "bob", Timestamp: ts.Add(time.Minute)}

	id, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), id)

	id, err = s.Save(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), id)

	all, err := s.LoadAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0])
	assert.Equal(t, second, all[1])

	last, err := s.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), last)
}

func TestSQLiteLoadAllLimitKeepsMostRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := uint32(1); i <= 5; i++ {
		_, err := s.Save(ctx, notification.Envelope{ID: i, User: "alice", Timestamp: time.Unix(int64(i), 0)})
		require.NoError(t, err)
	}

	recent, err := s.LoadAll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint32(4), recent[0].ID)
	assert.Equal(t, uint32(5), recent[1].ID)
}

func TestSQLiteDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, notification.Envelope{ID: 1, User: "alice"})
	require.NoError(t, err)
	_, err = s.Save(ctx, notification.Envelope{ID: 1, User: "alice"})
	assert.Error(t, err)
}

func TestSQLiteReopenKeepsLastID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite3")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.Save(ctx, notification.Envelope{ID: 41, User: "alice"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	last, err := s.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(41), last)
}

func TestDisabled(t *testing.T) {
	var s Store = Disabled{}
	ctx := context.Background()

	assert.False(t, s.Enabled())
	_, err := s.Save(ctx, notification.Envelope{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = s.LoadAll(ctx, 1)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = s.LastID(ctx)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, s.Close())
}
