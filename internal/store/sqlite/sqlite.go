package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	identity   TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at, id);
`

// SQLiteStore implements store.MessageLog and store.Directory for SQLite.
type SQLiteStore struct {
	db       *sql.DB
	appendMu sync.Mutex
	timeline *store.Timeline
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithClock(dbPath, nil)
}

// NewWithClock is New with an injectable clock for message stamps.
func NewWithClock(dbPath string, now func() time.Time) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, timeline: store.NewTimeline(now, 0)}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageLog implementation ====

// Append persists a message and returns it with its id and timestamp.
func (s *SQLiteStore) Append(ctx context.Context, room, sender, body string) (*store.Message, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if !s.timeline.Known(room) {
		latest, err := s.latest(ctx, room)
		if err != nil {
			return nil, err
		}
		if !latest.IsZero() {
			s.timeline.Observe(room, latest)
		}
	}
	createdAt := s.timeline.Stamp(room)

	query := `
		INSERT INTO messages (room_id, sender, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, room, sender, body, createdAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return &store.Message{
		ID:        id,
		Room:      room,
		Sender:    sender,
		Body:      body,
		CreatedAt: createdAt,
	}, nil
}

// History retrieves every message of a room in chronological order.
func (s *SQLiteStore) History(ctx context.Context, room string) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender, body, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg   store.Message
			nanos int64
		)
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Sender, &msg.Body, &nanos); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, nanos).UTC()
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

func (s *SQLiteStore) latest(ctx context.Context, room string) (time.Time, error) {
	var nanos sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM messages WHERE room_id = ?`, room).Scan(&nanos)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest message: %w", err)
	}
	if !nanos.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos.Int64).UTC(), nil
}

// ==== UserDirectory implementation ====

// CreateUser registers an identity with its email address.
func (s *SQLiteStore) CreateUser(ctx context.Context, identity, email string) (*store.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (identity, email, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, identity, email, now.UnixNano()); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("user %q: %w", identity, store.ErrExists)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &store.User{Identity: identity, Email: email, CreatedAt: now}, nil
}

// ListUsers returns every registered user ordered by identity.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT identity, email, created_at
		FROM users
		ORDER BY identity ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var (
			user  store.User
			nanos int64
		)
		if err := rows.Scan(&user.Identity, &user.Email, &nanos); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.CreatedAt = time.Unix(0, nanos).UTC()
		users = append(users, &user)
	}

	return users, rows.Err()
}

// ==== IssueDirectory implementation ====

// CreateIssue stores a new issue under a generated uuid.
func (s *SQLiteStore) CreateIssue(ctx context.Context, title string) (*store.Issue, error) {
	issue := &store.Issue{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO issues (id, title, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, issue.ID, issue.Title, issue.CreatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}
	return issue, nil
}

// GetIssue retrieves an issue by id.
func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*store.Issue, error) {
	query := `
		SELECT id, title, created_at
		FROM issues
		WHERE id = ?
	`
	var (
		issue store.Issue
		nanos int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&issue.ID, &issue.Title, &nanos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("issue %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query issue: %w", err)
	}
	issue.CreatedAt = time.Unix(0, nanos).UTC()

	return &issue, nil
}

// ResolveTitle returns the issue title for a room id.
func (s *SQLiteStore) ResolveTitle(ctx context.Context, roomID string) (string, bool, error) {
	issue, err := s.GetIssue(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return issue.Title, true, nil
}
