package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/llm"
	"github.com/trendwatch/backend/internal/metrics"
	"github.com/trendwatch/backend/internal/query"
	"github.com/trendwatch/backend/internal/storage/models"
)

type stubSearcher struct {
	docs []models.IndexedDocument
}

func (s *stubSearcher) Search(ctx context.Context, req sqlite.SearchRequest) ([]models.IndexedDocument, error) {
	return s.docs, nil
}

type stubCompleter struct {
	calls        int
	lastMessages []llm.Message
	answer       string
}

func (s *stubCompleter) Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	s.calls++
	s.lastMessages = messages
	return s.answer, nil
}

type memCache struct {
	entries map[string][]byte
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) GetAnswer(ctx context.Context, queryHash string, out interface{}) (bool, error) {
	data, ok := m.entries[queryHash]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (m *memCache) SetAnswer(ctx context.Context, queryHash string, answer interface{}) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	m.entries[queryHash] = data
	m.sets++
	return nil
}

func newChatApp(h *ChatHandler) *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/chat", h.HandleChat)
	return app
}

func postChat(t *testing.T, app *fiber.App, message, sessionID string) ChatResponse {
	t.Helper()

	body, _ := json.Marshal(ChatRequest{Message: message, SessionID: sessionID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	return out
}

func TestChatCacheHitKeepsConversationHistory(t *testing.T) {
	doc := models.IndexedDocument{
		ID:      "id-1",
		Title:   "Story",
		Link:    "https://example.com/1",
		Source:  "example.com",
		Content: strings.Repeat("w", 200),
	}
	completer := &stubCompleter{answer: "grounded answer [1]"}
	engine := query.NewEngine(&stubSearcher{docs: []models.IndexedDocument{doc}}, completer, query.Config{})
	cache := newMemCache()

	h := NewChatHandler(engine, cache, 20)
	app := newChatApp(h)

	question := "how do transformers work?"

	// Miss: the engine answers and the result is cached.
	first := postChat(t, app, question, "")
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", completer.calls)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	// Hit from a different client: no engine call.
	second := postChat(t, app, question, "")
	if completer.calls != 1 {
		t.Fatalf("cache hit must not reach the engine, calls = %d", completer.calls)
	}
	if second.Answer != first.Answer {
		t.Errorf("cached answer = %q, want %q", second.Answer, first.Answer)
	}
	if second.SessionID == first.SessionID {
		t.Error("each fresh client gets its own session")
	}

	// A follow-up in the cache-served session still carries the exchange.
	_ = postChat(t, app, "can you expand on that?", second.SessionID)
	if completer.calls != 2 {
		t.Fatalf("follow-up must reach the engine, calls = %d", completer.calls)
	}
	if got := len(completer.lastMessages); got != 4 {
		t.Fatalf("follow-up prompt carries %d messages, want 4 (system, prior exchange, current)", got)
	}
	if completer.lastMessages[1].Content != question || completer.lastMessages[1].Role != llm.RoleUser {
		t.Errorf("prior user turn missing from history: %+v", completer.lastMessages[1])
	}
	if completer.lastMessages[2].Content != first.Answer || completer.lastMessages[2].Role != llm.RoleAssistant {
		t.Errorf("cache-served answer missing from history: %+v", completer.lastMessages[2])
	}

	// The follow-up carries history and must not be cached.
	if cache.sets != 1 {
		t.Errorf("follow-up answer was cached, sets = %d", cache.sets)
	}
}

func TestChatObservesQueryDuration(t *testing.T) {
	doc := models.IndexedDocument{ID: "id-1", Title: "Story", Link: "https://example.com/1", Content: "body"}
	engine := query.NewEngine(&stubSearcher{docs: []models.IndexedDocument{doc}}, &stubCompleter{answer: "ok [1]"}, query.Config{})

	h := NewChatHandler(engine, nil, 20)
	app := newChatApp(h)

	postChat(t, app, "a question", "")

	if testutil.CollectAndCount(metrics.QueryDuration) == 0 {
		t.Error("chat handling must record query duration")
	}
}

type stubRunner struct {
	err  error
	done chan struct{}
}

func (s *stubRunner) Run(ctx context.Context) (*models.RunReport, error) {
	defer close(s.done)
	if s.err != nil {
		return nil, s.err
	}
	return &models.RunReport{Fetched: 1, Indexed: 1}, nil
}

type stubFlusher struct {
	flushed chan struct{}
}

func (s *stubFlusher) Flush(ctx context.Context) error {
	close(s.flushed)
	return nil
}

func TestPipelineRunFlushesAnswerCache(t *testing.T) {
	runner := &stubRunner{done: make(chan struct{})}
	flusher := &stubFlusher{flushed: make(chan struct{})}

	h := NewAdminHandler(runner, flusher, time.Minute)
	app := fiber.New()
	app.Post("/api/v1/admin/pipeline/run", h.HandlePipelineRun)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/pipeline/run", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	select {
	case <-flusher.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("answer cache not flushed after a successful run")
	}
}

func TestPipelineRunFailureSkipsCacheFlush(t *testing.T) {
	runner := &stubRunner{err: errors.New("sources down"), done: make(chan struct{})}
	flusher := &stubFlusher{flushed: make(chan struct{})}

	h := NewAdminHandler(runner, flusher, time.Minute)
	app := fiber.New()
	app.Post("/api/v1/admin/pipeline/run", h.HandlePipelineRun)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/pipeline/run", nil)
	if _, err := app.Test(req, 5000); err != nil {
		t.Fatal(err)
	}

	<-runner.done
	select {
	case <-flusher.flushed:
		t.Error("failed run must not flush the cache")
	case <-time.After(100 * time.Millisecond):
	}
}

type stubIndexStats struct {
	n   int
	err error
}

func (s *stubIndexStats) Count() (int, error) { return s.n, s.err }

func TestHealthReportsIndexSize(t *testing.T) {
	h := NewHealthHandler(&stubIndexStats{n: 42})
	app := fiber.New()
	app.Get("/api/v1/health", h.HandleHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), 5000)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Indexed int    `json:"indexed_articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.Indexed != 42 {
		t.Errorf("body = %+v", body)
	}
}

func TestHealthDegradedWhenIndexUnreachable(t *testing.T) {
	h := NewHealthHandler(&stubIndexStats{err: errors.New("database is locked")})
	app := fiber.New()
	app.Get("/api/v1/health", h.HandleHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
