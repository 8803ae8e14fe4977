package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a record whose key is taken.
	ErrExists = errors.New("already exists")
)

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Room      string
	Sender    string
	Body      string
	CreatedAt time.Time
}

// User is a directory entry that can receive out-of-band notifications.
type User struct {
	Identity  string
	Email     string
	CreatedAt time.Time
}

// Issue is the support issue a room belongs to.
type Issue struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// MessageLog handles ordered message persistence per room.
type MessageLog interface {
	// Append stamps and persists a message, returning the stored record.
	// Timestamps never go backwards within a room.
	Append(ctx context.Context, room, sender, body string) (*Message, error)

	// History returns every message of a room, oldest first.
	// Ties on CreatedAt are ordered by ID.
	History(ctx context.Context, room string) ([]*Message, error)

	// Close releases the underlying resources.
	Close() error
}

// UserDirectory lists users known to the system.
type UserDirectory interface {
	// CreateUser registers an identity with its email address.
	CreateUser(ctx context.Context, identity, email string) (*User, error)

	// ListUsers returns every registered user.
	ListUsers(ctx context.Context) ([]*User, error)
}

// IssueDirectory maps room ids to issues.
type IssueDirectory interface {
	// CreateIssue stores a new issue and returns it with a generated id.
	CreateIssue(ctx context.Context, title string) (*Issue, error)

	// GetIssue retrieves an issue by id.
	GetIssue(ctx context.Context, id string) (*Issue, error)

	// ResolveTitle returns the issue title for a room id.
	// ok is false when no issue matches.
	ResolveTitle(ctx context.Context, roomID string) (title string, ok bool, err error)
}

// Directory aggregates the user and issue lookups.
type Directory interface {
	UserDirectory
	IssueDirectory

	// Close closes the underlying database connection.
	Close() error
}
