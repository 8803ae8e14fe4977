package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type decodeFunc func(v interface{}) error

func (f decodeFunc) Decode(v interface{}) error { return f(v) }

func TestLatestTimeEmptyRoom(t *testing.T) {
	req := require.New(t)

	ts, err := latestTime(decodeFunc(func(interface{}) error {
		return fmt.Errorf("find one: %w", mongo.ErrNoDocuments)
	}))
	req.NoError(err)
	req.True(ts.IsZero())

	_, err = latestTime(decodeFunc(func(interface{}) error { return errors.New("connection reset") }))
	req.Error(err)

	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ts, err = latestTime(decodeFunc(func(v interface{}) error {
		v.(*messageDoc).Time = want
		return nil
	}))
	req.NoError(err)
	req.True(ts.Equal(want))
}

// Runs only against a live server, e.g.
// ISSUECHAT_TEST_MONGO_URI=mongodb://localhost:27017 go test ./internal/store/mongodb
func TestAppendAndHistoryIntegration(t *testing.T) {
	uri := os.Getenv("ISSUECHAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ISSUECHAT_TEST_MONGO_URI not set")
	}
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "issuechat_test_" + uuid.NewString()[:8]
	l, err := Connect(ctx, uri, dbName)
	req.NoError(err)
	defer func() {
		_ = l.client.Database(dbName).Drop(context.Background())
		_ = l.Close()
	}()

	first, err := l.Append(ctx, "issue-42", "A", "need help")
	req.NoError(err)
	second, err := l.Append(ctx, "issue-42", "B", "looking")
	req.NoError(err)
	req.Greater(second.ID, first.ID)

	history, err := l.History(ctx, "issue-42")
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("need help", history[0].Body)
	req.True(history[0].CreatedAt.Equal(first.CreatedAt))
	req.Equal("looking", history[1].Body)

	empty, err := l.History(ctx, "ghost")
	req.NoError(err)
	req.Empty(empty)
}
