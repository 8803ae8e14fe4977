package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store"
	"github.com/vovakirdan/issuechat-server/internal/store/memory"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain returns every event currently buffered on ch.
func drain(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

var errOutage = errors.New("database unreachable")

// flakyLog wraps the in-memory log and fails on demand.
type flakyLog struct {
	*memory.Store
	failAppend  atomic.Bool
	failHistory atomic.Bool
}

func (l *flakyLog) Append(ctx context.Context, room, sender, body string) (*store.Message, error) {
	if l.failAppend.Load() {
		return nil, errOutage
	}
	return l.Store.Append(ctx, room, sender, body)
}

func (l *flakyLog) History(ctx context.Context, room string) ([]*store.Message, error) {
	if l.failHistory.Load() {
		return nil, errOutage
	}
	return l.Store.History(ctx, room)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	reject  map[string]bool
}

func (n *recordingNotifier) Enqueue(notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject[notice.Email] {
		return notify.ErrQueueFull
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *recordingNotifier) recipients() map[string]notify.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]notify.Notice, len(n.notices))
	for _, notice := range n.notices {
		out[notice.Recipient] = notice
	}
	return out
}

type fixture struct {
	hub      *Hub
	log      *flakyLog
	db       *memory.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()

	db := memory.New(nil)
	for _, u := range users {
		if _, err := db.CreateUser(context.Background(), u, u+"@example.com"); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}
	log := &flakyLog{Store: db}
	notifier := &recordingNotifier{reject: make(map[string]bool)}
	return &fixture{
		hub:      NewHub(log, db, db, notifier, nil),
		log:      log,
		db:       db,
		notifier: notifier,
	}
}
