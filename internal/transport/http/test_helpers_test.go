package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/issuechat-server/internal/config"
	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store/sqlite"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mailbox struct {
	mu   sync.Mutex
	mail []sentMail
}

func (m *mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mail = append(m.mail, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mailbox) sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.mail...)
}

type testEnv struct {
	ts         *httptest.Server
	hub        *core.Hub
	store      *sqlite.SQLiteStore
	mailbox    *mailbox
	dispatcher *notify.Dispatcher
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// startTestServer wires an in-memory SQLite store, a dispatcher with a
// recording sender and the HTTP server.
func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	box := &mailbox{}
	dispatcher := notify.NewDispatcher(box, notify.Options{Workers: 2, QueueSize: 16, Timeout: time.Second}, &disabledLogger)
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	hub := core.NewHub(st, st, st, dispatcher, &disabledLogger)

	cfg := config.Default()
	cfg.Addr = ":0"
	for _, m := range mutate {
		m(&cfg)
	}

	server := NewServer(hub, st, dispatcher, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, mailbox: box, dispatcher: dispatcher}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
