package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_messages (
	id         BIGSERIAL PRIMARY KEY,
	room_id    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_messages_room ON room_messages (room_id, created_at, id);
`

// MessageLog implements store.MessageLog on PostgreSQL.
// timestamptz keeps microseconds; stamps are truncated to match.
type MessageLog struct {
	pool     *pgxpool.Pool
	appendMu sync.Mutex
	timeline *store.Timeline
}

// Connect opens a pool, pings it and applies the schema.
func Connect(ctx context.Context, dsn string) (*MessageLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &MessageLog{
		pool:     pool,
		timeline: store.NewTimeline(nil, time.Microsecond),
	}, nil
}

// Close closes the pool.
func (l *MessageLog) Close() error {
	l.pool.Close()
	return nil
}

// Append inserts a message row.
func (l *MessageLog) Append(ctx context.Context, room, sender, body string) (*store.Message, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	if !l.timeline.Known(room) {
		latest, err := l.latest(ctx, room)
		if err != nil {
			return nil, err
		}
		if !latest.IsZero() {
			l.timeline.Observe(room, latest)
		}
	}

	msg := &store.Message{
		Room:      room,
		Sender:    sender,
		Body:      body,
		CreatedAt: l.timeline.Stamp(room),
	}
	row := l.pool.QueryRow(ctx, `
		INSERT INTO room_messages (room_id, sender, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, msg.Room, msg.Sender, msg.Body, msg.CreatedAt)
	if err := row.Scan(&msg.ID); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// History returns the room messages ordered by (created_at, id).
func (l *MessageLog) History(ctx context.Context, room string) ([]*store.Message, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, room_id, sender, body, created_at
		FROM room_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.Room, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (l *MessageLog) latest(ctx context.Context, room string) (time.Time, error) {
	var latest time.Time
	err := l.pool.QueryRow(ctx, `
		SELECT created_at FROM room_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, room).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest message: %w", err)
	}
	return latest.UTC(), nil
}
