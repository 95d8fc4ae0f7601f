package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/config"
	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/janitor"
	"github.com/taskdeck/taskdeck/task"
)

// --- Test doubles ---

type fakeChat struct {
	mu sync.Mutex

	posted     []discord.WebhookMessage
	edited     map[string]discord.WebhookMessage
	sent       []string
	events     []discord.ScheduledEvent
	nextID     int
	executeErr error
	editErr    error
	eventErr   error
}

func newFakeChat() *fakeChat {
	return &fakeChat{edited: make(map[string]discord.WebhookMessage)}
}

func (f *fakeChat) ExecuteWebhook(_ context.Context, msg discord.WebhookMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executeErr != nil {
		return "", f.executeErr
	}
	f.posted = append(f.posted, msg)
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeChat) EditWebhookMessage(_ context.Context, messageID string, msg discord.WebhookMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited[messageID] = msg
	return nil
}

func (f *fakeChat) SendChannelMessage(_ context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+": "+content)
	return "sent-1", nil
}

func (f *fakeChat) CreateScheduledEvent(_ context.Context, _ string, ev discord.ScheduledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeCleaner struct {
	mu   sync.Mutex
	jobs []janitor.Job
}

func (f *fakeCleaner) Enqueue(job janitor.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

var testNow = time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	store   *task.SQLiteStore
	chat    *fakeChat
	cleaner *fakeCleaner
	handler http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	store, err := task.NewSQLiteStore(t.TempDir() + "/server.db")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })

	cfg := config.DefaultConfig()
	cfg.Discord.WebhookURL = "https://example.com/hook"
	cfg.Discord.GuildID = "guild-1"
	cfg.Discord.EventChannelID = "voice-1"
	if mutate != nil {
		mutate(cfg)
	}

	chat := newFakeChat()
	cleaner := &fakeCleaner{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, store, chat, cleaner, "test", logger)
	srv.SetClock(func() time.Time { return testNow })

	return &testEnv{srv: srv, store: store, chat: chat, cleaner: cleaner, handler: srv.Handler()}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func submitBody(userID string, count int, names ...string) map[string]any {
	tasks := make([]map[string]any, 0, len(names))
	for _, n := range names {
		tasks = append(tasks, map[string]any{
			"taskName":    n,
			"priority":    "Medium",
			"description": "desc of " + n,
			"estimatedTime": map[string]any{
				"value": 2, "unit": "hours",
			},
		})
	}
	return map[string]any{"user_id": userID, "task_count": count, "tasks": tasks}
}

// --- POST /submit ---

func TestSubmit_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.post(t, "/submit", submitBody("u1", 2, "alpha", "beta"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "success" {
		t.Errorf("status = %q, want success", resp["status"])
	}

	date := task.DisplayDate(testNow)
	stored, err := env.store.ListTasks(context.Background(), "u1", date)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d tasks, want 2", len(stored))
	}
	if stored[0].EstimatedTime != "2 hours" {
		t.Errorf("EstimatedTime = %q, want 2 hours", stored[0].EstimatedTime)
	}

	if len(env.chat.posted) != 1 {
		t.Fatalf("posted %d summaries, want 1", len(env.chat.posted))
	}
	ref, err := env.store.LatestSummaryRef(context.Background(), "u1", date)
	if err != nil {
		t.Fatalf("LatestSummaryRef: %v", err)
	}
	if ref.MessageID != "msg-1" {
		t.Errorf("recorded message id = %q, want msg-1", ref.MessageID)
	}

	if len(env.cleaner.jobs) != 1 {
		t.Fatalf("enqueued %d cleanup jobs, want 1", len(env.cleaner.jobs))
	}
	job := env.cleaner.jobs[0]
	if job.Owner != "u1" || job.Date != date || job.KeepMessageID != "msg-1" {
		t.Errorf("cleanup job = %+v", job)
	}
}

func TestSubmit_CountMismatchWritesNothing(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.post(t, "/submit", submitBody("u1", 3, "alpha", "beta"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Task count mismatch") {
		t.Errorf("body = %s", rec.Body.String())
	}

	stored, _ := env.store.ListTasks(context.Background(), "u1", task.DisplayDate(testNow))
	if len(stored) != 0 {
		t.Errorf("stored %d tasks after rejected submission, want 0", len(stored))
	}
	if len(env.chat.posted) != 0 {
		t.Errorf("summary posted despite rejection")
	}
}

func TestSubmit_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{not json"},
		{"missing user_id", submitBody("", 1, "alpha")},
		{"missing task_count", map[string]any{"user_id": "u1", "tasks": []any{}}},
		{"bad priority", map[string]any{
			"user_id": "u1", "task_count": 1,
			"tasks": []map[string]any{{"taskName": "a", "priority": "Urgent"}},
		}},
		{"missing task name", map[string]any{
			"user_id": "u1", "task_count": 1,
			"tasks": []map[string]any{{"priority": "High"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.post(t, "/submit", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			stored, _ := env.store.ListTasks(context.Background(), "u1", task.DisplayDate(testNow))
			if len(stored) != 0 {
				t.Errorf("stored %d tasks, want 0", len(stored))
			}
		})
	}
}

// A chat failure after the store write is logged, not rolled back: the
// submission still succeeds and the tasks stay stored.
func TestSubmit_ChatFailureKeepsTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	env.chat.executeErr = fmt.Errorf("discord down")

	rec := env.post(t, "/submit", submitBody("u1", 1, "alpha"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	date := task.DisplayDate(testNow)
	stored, _ := env.store.ListTasks(context.Background(), "u1", date)
	if len(stored) != 1 {
		t.Errorf("stored %d tasks, want 1", len(stored))
	}
	if _, err := env.store.LatestSummaryRef(context.Background(), "u1", date); err == nil {
		t.Error("summary ref recorded despite failed post")
	}
	if len(env.cleaner.jobs) != 0 {
		t.Error("cleanup enqueued despite failed post")
	}
}

// Resubmission appends rather than replaces; the new summary covers all rows
// and cleanup targets the previous message.
func TestSubmit_ResubmissionAccumulates(t *testing.T) {
	env := newTestEnv(t, nil)

	env.post(t, "/submit", submitBody("u1", 1, "alpha"))
	rec := env.post(t, "/submit", submitBody("u1", 1, "beta"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	date := task.DisplayDate(testNow)
	stored, _ := env.store.ListTasks(context.Background(), "u1", date)
	if len(stored) != 2 {
		t.Errorf("stored %d tasks, want 2 (no de-duplication)", len(stored))
	}
	if len(env.cleaner.jobs) != 2 || env.cleaner.jobs[1].KeepMessageID != "msg-2" {
		t.Errorf("cleanup jobs = %+v", env.cleaner.jobs)
	}
}

// --- GET /form ---

func TestForm_PassesUserIDThrough(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/form?user_id=u42", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "u42") {
		t.Error("rendered form missing the owner id")
	}
}

func TestForm_MissingUserID(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/form", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestForm_SignedLink(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Auth.FormSecret = "test-secret"
	})

	token, err := signFormToken("test-secret", "u7", time.Now())
	if err != nil {
		t.Fatalf("signFormToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/form?token="+token, nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "u7") {
		t.Error("rendered form missing the token's owner id")
	}

	// A raw user_id is not accepted once signing is on.
	req = httptest.NewRequest(http.MethodGet, "/form?user_id=intruder", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned request status = %d, want 403", rec.Code)
	}
}

func TestFormToken_RoundTripAndExpiry(t *testing.T) {
	token, err := signFormToken("s", "u1", time.Now())
	if err != nil {
		t.Fatalf("signFormToken: %v", err)
	}
	id, err := verifyFormToken("s", token)
	if err != nil {
		t.Fatalf("verifyFormToken: %v", err)
	}
	if id != "u1" {
		t.Errorf("subject = %q, want u1", id)
	}

	if _, err := verifyFormToken("wrong", token); err == nil {
		t.Error("token verified with the wrong secret")
	}

	expired, err := signFormToken("s", "u1", time.Now().Add(-2*formTokenTTL))
	if err != nil {
		t.Fatalf("signFormToken: %v", err)
	}
	if _, err := verifyFormToken("s", expired); err == nil {
		t.Error("expired token verified")
	}
}

// --- GET /api/status ---

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}
