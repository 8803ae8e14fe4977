package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

// Store keeps messages, users and issues in process memory.
// Everything is lost on restart; it backs tests and the "memory" driver.
type Store struct {
	mu       sync.RWMutex
	timeline *store.Timeline
	nextID   int64
	messages map[string][]*store.Message
	users    []*store.User
	issues   map[string]*store.Issue
}

// New creates an empty in-memory store. A nil now uses time.Now.
func New(now func() time.Time) *Store {
	return &Store{
		timeline: store.NewTimeline(now, 0),
		messages: make(map[string][]*store.Message),
		issues:   make(map[string]*store.Issue),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Append stores a message at the end of the room log.
func (s *Store) Append(_ context.Context, room, sender, body string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg := &store.Message{
		ID:        s.nextID,
		Room:      room,
		Sender:    sender,
		Body:      body,
		CreatedAt: s.timeline.Stamp(room),
	}
	s.messages[room] = append(s.messages[room], msg)

	out := *msg
	return &out, nil
}

// History returns copies of the room messages, oldest first.
func (s *Store) History(_ context.Context, room string) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[room]
	out := make([]*store.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// CreateUser registers a user. Identities are unique.
func (s *Store) CreateUser(_ context.Context, identity, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Identity == identity {
			return nil, fmt.Errorf("user %q: %w", identity, store.ErrExists)
		}
	}
	u := &store.User{Identity: identity, Email: email, CreatedAt: time.Now().UTC()}
	s.users = append(s.users, u)

	out := *u
	return &out, nil
}

// ListUsers returns all users ordered by identity.
func (s *Store) ListUsers(_ context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

// CreateIssue stores an issue under a fresh uuid.
func (s *Store) CreateIssue(ctx context.Context, title string) (*store.Issue, error) {
	return s.PutIssue(ctx, uuid.NewString(), title)
}

// PutIssue stores an issue under a caller-chosen id, replacing any previous one.
func (s *Store) PutIssue(_ context.Context, id, title string) (*store.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue := &store.Issue{ID: id, Title: title, CreatedAt: time.Now().UTC()}
	s.issues[id] = issue

	out := *issue
	return &out, nil
}

// GetIssue retrieves an issue by id.
func (s *Store) GetIssue(_ context.Context, id string) (*store.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %q: %w", id, store.ErrNotFound)
	}
	out := *issue
	return &out, nil
}

// ResolveTitle returns the title of the issue behind roomID.
func (s *Store) ResolveTitle(ctx context.Context, roomID string) (string, bool, error) {
	issue, err := s.GetIssue(ctx, roomID)
	if err != nil {
		return "", false, nil
	}
	return issue.Title, true, nil
}
