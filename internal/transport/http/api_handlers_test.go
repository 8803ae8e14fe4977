package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/vovakirdan/issuechat-server/internal/proto"
)

func doJSON(t *testing.T, env *testEnv, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, env.ts.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestGetChatHistory(t *testing.T) {
	env := startTestServer(t)
	ctx := context.Background()

	resp := doJSON(t, env, http.MethodGet, "/chat/issue-9", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var empty []proto.EventMessage
	decode(t, resp, &empty)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty array, got %+v", empty)
	}

	for _, text := range []string{"one", "two", "three"} {
		if _, err := env.hub.PostMessage(ctx, "issue-9", "A", text); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	resp = doJSON(t, env, http.MethodGet, "/chat/issue-9", "")
	var history []proto.EventMessage
	decode(t, resp, &history)
	if len(history) != 3 || history[0].Message != "one" || history[2].Message != "three" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[0].Sender != "A" || history[0].Time == "" {
		t.Fatalf("missing fields: %+v", history[0])
	}
}

func TestPostMessageEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodPost, "/api/users", `{"identity":"B","email":"b@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/rooms/issue-1/messages", `{"sender":"A","text":"ping"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var msg proto.EventMessage
	decode(t, resp, &msg)
	if msg.Room != "issue-1" || msg.Sender != "A" || msg.Message != "ping" || msg.ID == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	waitFor(t, "notification to B", func() bool { return len(env.mailbox.sent()) == 1 })

	resp = doJSON(t, env, http.MethodPost, "/api/rooms/issue-1/messages", `{"sender":"A"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", resp.StatusCode)
	}
}

func TestPostMessageStorageOutage(t *testing.T) {
	env := startTestServer(t)

	if err := env.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	resp := doJSON(t, env, http.MethodPost, "/api/rooms/issue-1/messages", `{"sender":"A","text":"lost"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if stats := env.dispatcher.Stats(); stats.Queued != 0 {
		t.Fatalf("notifications queued despite outage: %+v", stats)
	}
}

func TestUsersEndpoints(t *testing.T) {
	env := startTestServer(t)

	for _, body := range []string{
		`{"identity":"bob","email":"bob@example.com"}`,
		`{"identity":"alice","email":"alice@example.com"}`,
	} {
		resp := doJSON(t, env, http.MethodPost, "/api/users", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create user: %d", resp.StatusCode)
		}
	}

	resp := doJSON(t, env, http.MethodPost, "/api/users", `{"identity":"bob","email":"other@example.com"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/users", `{"identity":"eve","email":"not-an-email"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/users", "")
	var users []UserResponse
	decode(t, resp, &users)
	if len(users) != 2 || users[0].Identity != "alice" || users[1].Identity != "bob" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestIssuesEndpoints(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodPost, "/api/issues", `{"title":"Printer jam"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: %d", resp.StatusCode)
	}
	var created IssueResponse
	decode(t, resp, &created)
	if created.ID == "" || created.Title != "Printer jam" {
		t.Fatalf("unexpected issue: %+v", created)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/issues/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get issue: %d", resp.StatusCode)
	}
	var fetched IssueResponse
	decode(t, resp, &fetched)
	if fetched.ID != created.ID || fetched.Title != created.Title {
		t.Fatalf("unexpected issue: %+v", fetched)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/issues/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/issues", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPresenceEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodGet, "/api/rooms/quiet/presence", "")
	var presence PresenceResponse
	decode(t, resp, &presence)
	if presence.Room != "quiet" || presence.Members == nil || len(presence.Members) != 0 {
		t.Fatalf("unexpected presence: %+v", presence)
	}

	env.hub.Presence().Join("busy", "zoe")
	env.hub.Presence().Join("busy", "adam")

	resp = doJSON(t, env, http.MethodGet, "/api/rooms/busy/presence", "")
	decode(t, resp, &presence)
	if len(presence.Members) != 2 || presence.Members[0] != "adam" {
		t.Fatalf("unexpected presence: %+v", presence)
	}
}
