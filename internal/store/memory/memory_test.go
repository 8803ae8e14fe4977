package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

func TestHistoryOrderedAndStable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := New(func() time.Time { return fixed })

	for _, body := range []string{"one", "two", "three"} {
		_, err := s.Append(ctx, "issue-42", "A", body)
		req.NoError(err)
	}
	_, err := s.Append(ctx, "other", "B", "elsewhere")
	req.NoError(err)

	first, err := s.History(ctx, "issue-42")
	req.NoError(err)
	req.Len(first, 3)
	req.Equal("one", first[0].Body)
	req.Equal("three", first[2].Body)
	for i := 1; i < len(first); i++ {
		req.False(first[i].CreatedAt.Before(first[i-1].CreatedAt))
		req.Greater(first[i].ID, first[i-1].ID)
	}

	second, err := s.History(ctx, "issue-42")
	req.NoError(err)
	req.Equal(first, second)
}

func TestHistoryUnknownRoomIsEmpty(t *testing.T) {
	s := New(nil)
	msgs, err := s.History(context.Background(), "ghost")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestResolveTitle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := New(nil)

	issue, err := s.CreateIssue(ctx, "Segfault in parser")
	req.NoError(err)

	title, ok, err := s.ResolveTitle(ctx, issue.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal("Segfault in parser", title)

	_, ok, err = s.ResolveTitle(ctx, "missing")
	req.NoError(err)
	req.False(ok)
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := New(nil)

	_, err := s.CreateUser(ctx, "bob", "bob@example.com")
	req.NoError(err)
	_, err = s.CreateUser(ctx, "bob", "other@example.com")
	req.ErrorIs(err, store.ErrExists)

	users, err := s.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 1)
}
