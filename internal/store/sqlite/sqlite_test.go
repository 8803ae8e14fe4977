package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

func newTestStore(t *testing.T, now func() time.Time) *SQLiteStore {
	t.Helper()

	s, err := NewWithClock(":memory:", now)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t, nil)

	first, err := s.Append(ctx, "issue-42", "A", "need help")
	req.NoError(err)
	second, err := s.Append(ctx, "issue-42", "B", "on it")
	req.NoError(err)
	_, err = s.Append(ctx, "issue-7", "C", "unrelated")
	req.NoError(err)

	req.Greater(second.ID, first.ID)
	req.False(second.CreatedAt.Before(first.CreatedAt))

	history, err := s.History(ctx, "issue-42")
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(*first, *history[0])
	req.Equal(*second, *history[1])

	again, err := s.History(ctx, "issue-42")
	req.NoError(err)
	req.Equal(history, again)
}

func TestHistorySameTimestampKeepsInsertionOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return fixed })

	bodies := []string{"a", "b", "c", "d"}
	for _, b := range bodies {
		_, err := s.Append(ctx, "room", "A", b)
		req.NoError(err)
	}

	history, err := s.History(ctx, "room")
	req.NoError(err)
	req.Len(history, len(bodies))
	for i, b := range bodies {
		req.Equal(b, history[i].Body)
		req.True(history[i].CreatedAt.Equal(fixed))
	}
}

func TestAppendAfterReopenDoesNotGoBackwards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")
	later := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	s, err := NewWithClock(path, func() time.Time { return later })
	req.NoError(err)
	_, err = s.Append(ctx, "room", "A", "from the future")
	req.NoError(err)
	req.NoError(s.Close())

	earlier := later.Add(-time.Hour)
	s, err = NewWithClock(path, func() time.Time { return earlier })
	req.NoError(err)
	defer s.Close()

	msg, err := s.Append(ctx, "room", "B", "after restart")
	req.NoError(err)
	req.True(msg.CreatedAt.Equal(later))

	history, err := s.History(ctx, "room")
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("after restart", history[1].Body)
}

func TestHistoryUnknownRoom(t *testing.T) {
	s := newTestStore(t, nil)
	history, err := s.History(context.Background(), "nobody-here")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestUsersAndIssues(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestStore(t, nil)

	for _, u := range []string{"carol", "alice", "bob"} {
		_, err := s.CreateUser(ctx, u, u+"@example.com")
		req.NoError(err)
	}
	_, err := s.CreateUser(ctx, "alice", "dup@example.com")
	req.ErrorIs(err, store.ErrExists)

	users, err := s.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 3)
	req.Equal("alice", users[0].Identity)
	req.Equal("alice@example.com", users[0].Email)

	issue, err := s.CreateIssue(ctx, "Build fails on arm64")
	req.NoError(err)

	title, ok, err := s.ResolveTitle(ctx, issue.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal("Build fails on arm64", title)

	_, ok, err = s.ResolveTitle(ctx, "no-such-issue")
	req.NoError(err)
	req.False(ok)

	_, err = s.GetIssue(ctx, "no-such-issue")
	req.ErrorIs(err, store.ErrNotFound)
}

func TestClosedStoreFailsAppend(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Append(context.Background(), "room", "A", "lost")
	require.Error(t, err)
}
