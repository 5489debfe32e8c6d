package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/llm"
	"github.com/trendwatch/backend/internal/storage/models"
)

type fakeSearcher struct {
	lastReq sqlite.SearchRequest
	docs    []models.IndexedDocument
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, req sqlite.SearchRequest) ([]models.IndexedDocument, error) {
	f.lastReq = req
	return f.docs, f.err
}

type fakeCompleter struct {
	lastMessages []llm.Message
	answer       string
	err          error
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	f.lastMessages = messages
	return f.answer, f.err
}

func testDoc(n int, contentLen int) models.IndexedDocument {
	return models.IndexedDocument{
		ID:            fmt.Sprintf("id-%d", n),
		Title:         fmt.Sprintf("Article %d", n),
		Link:          fmt.Sprintf("https://example.com/%d", n),
		Source:        "example.com",
		PublishedDate: "2026-08-27T10:00:00Z",
		Content:       strings.Repeat("w", contentLen),
	}
}

func TestChatTemporalQuerySwitchesToRecencyWindow(t *testing.T) {
	searcher := &fakeSearcher{docs: []models.IndexedDocument{testDoc(1, 200)}}
	completer := &fakeCompleter{answer: "something happened [1]"}

	e := NewEngine(searcher, completer, Config{})
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	e.extractEntities = func(string) []string { return []string{"OpenAI"} }

	resp, err := e.Chat(context.Background(), NewSession(20), "what did OpenAI announce in the last 24 hours?")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if !resp.Temporal {
		t.Error("response should be flagged temporal")
	}
	if !searcher.lastReq.OrderByRecency {
		t.Error("temporal query should order by recency")
	}
	wantSince := now.Add(-24 * time.Hour)
	if !searcher.lastReq.Since.Equal(wantSince) {
		t.Errorf("Since = %v, want %v", searcher.lastReq.Since, wantSince)
	}
	if searcher.lastReq.Query != "OpenAI" {
		t.Errorf("temporal query terms should come from extracted entities, got %q", searcher.lastReq.Query)
	}
}

func TestChatNonTemporalUsesRelevanceRanking(t *testing.T) {
	searcher := &fakeSearcher{docs: []models.IndexedDocument{testDoc(1, 200)}}
	completer := &fakeCompleter{answer: "answer [1]"}

	e := NewEngine(searcher, completer, Config{})
	e.extractEntities = func(string) []string { return nil }

	if _, err := e.Chat(context.Background(), NewSession(20), "how do transformers work?"); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if searcher.lastReq.OrderByRecency {
		t.Error("non-temporal query must not force recency ordering")
	}
	if !searcher.lastReq.Since.IsZero() {
		t.Error("non-temporal query must not carry a date window")
	}
	if searcher.lastReq.Top != 15 {
		t.Errorf("default Top = %d, want 15", searcher.lastReq.Top)
	}
}

func TestChatErrorTaxonomy(t *testing.T) {
	t.Run("retrieval failure", func(t *testing.T) {
		searcher := &fakeSearcher{err: errors.New("index locked")}
		e := NewEngine(searcher, &fakeCompleter{}, Config{})
		e.extractEntities = func(string) []string { return nil }

		session := NewSession(20)
		_, err := e.Chat(context.Background(), session, "anything")
		if !errors.Is(err, ErrRetrieval) {
			t.Errorf("want ErrRetrieval, got %v", err)
		}
		if len(session.Turns) != 0 {
			t.Error("failed exchange must not be recorded in the session")
		}
	})

	t.Run("generation failure", func(t *testing.T) {
		searcher := &fakeSearcher{docs: []models.IndexedDocument{testDoc(1, 200)}}
		completer := &fakeCompleter{err: errors.New("upstream 500")}
		e := NewEngine(searcher, completer, Config{})
		e.extractEntities = func(string) []string { return nil }

		session := NewSession(20)
		_, err := e.Chat(context.Background(), session, "anything")
		if !errors.Is(err, ErrGeneration) {
			t.Errorf("want ErrGeneration, got %v", err)
		}
		if errors.Is(err, ErrRetrieval) {
			t.Error("generation failure must not be classified as retrieval failure")
		}
		if len(session.Turns) != 0 {
			t.Error("failed exchange must not be recorded in the session")
		}
	})
}

func TestAssembleContextStopsAtBudget(t *testing.T) {
	docs := []models.IndexedDocument{testDoc(1, 400), testDoc(2, 400), testDoc(3, 400)}

	e := NewEngine(&fakeSearcher{}, &fakeCompleter{}, Config{})

	header := "Here are relevant articles from the news database. Use numbered references [1], [2], etc. to cite them:\n\n"
	budget := Estimate(header) + Estimate(formatDoc(1, docs[0])) + Estimate(formatDoc(2, docs[1]))

	_, accepted, used := e.assembleContext(docs, budget)
	if len(accepted) != 2 {
		t.Fatalf("expected exactly 2 accepted docs, got %d", len(accepted))
	}
	if used > budget {
		t.Errorf("used %d tokens over budget %d", used, budget)
	}

	// One token short of the second entry drops it.
	_, accepted, used = e.assembleContext(docs, budget-1)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted doc one token under budget, got %d", len(accepted))
	}
	if used > budget-1 {
		t.Errorf("used %d tokens over budget %d", used, budget-1)
	}
}

func TestAssembleContextNeverZeroWhenOneFits(t *testing.T) {
	big := testDoc(1, 40000)
	small := testDoc(2, 200)
	docs := []models.IndexedDocument{big, small}

	e := NewEngine(&fakeSearcher{}, &fakeCompleter{}, Config{})

	_, accepted, used := e.assembleContext(docs, 200)
	if len(accepted) != 1 {
		t.Fatalf("expected the small doc to be accepted alone, got %d docs", len(accepted))
	}
	if accepted[0].ID != small.ID {
		t.Errorf("wrong doc accepted: %s", accepted[0].ID)
	}
	if used > 200 {
		t.Errorf("fallback acceptance overflowed the budget: %d", used)
	}

	// Nothing fits: empty context, zero docs.
	_, accepted, _ = e.assembleContext([]models.IndexedDocument{big}, 200)
	if len(accepted) != 0 {
		t.Errorf("expected no docs when none fit, got %d", len(accepted))
	}
}

func TestChatHistoryShrinksContextBudget(t *testing.T) {
	header := "Here are relevant articles from the news database. Use numbered references [1], [2], etc. to cite them:\n\n"
	docs := []models.IndexedDocument{testDoc(1, 400), testDoc(2, 400)}
	twoDocBudget := Estimate(header) + Estimate(formatDoc(1, docs[0])) + Estimate(formatDoc(2, docs[1]))
	oneDocBudget := Estimate(header) + Estimate(formatDoc(1, docs[0]))

	searcher := &fakeSearcher{docs: docs}
	completer := &fakeCompleter{answer: "ok [1]"}
	e := NewEngine(searcher, completer, Config{
		ContextTokens:        twoDocBudget,
		ContextTokensHistory: oneDocBudget,
	})
	e.extractEntities = func(string) []string { return nil }

	session := NewSession(20)

	first, err := e.Chat(context.Background(), session, "first question")
	if err != nil {
		t.Fatalf("first Chat: %v", err)
	}
	if len(first.Sources) != 2 {
		t.Fatalf("fresh session should use the full budget: got %d sources", len(first.Sources))
	}

	second, err := e.Chat(context.Background(), session, "follow up")
	if err != nil {
		t.Fatalf("second Chat: %v", err)
	}
	if len(second.Sources) != 1 {
		t.Errorf("session with history should use the reduced budget: got %d sources", len(second.Sources))
	}

	// The prompt carries the prior exchange plus system and current user turn.
	if len(completer.lastMessages) != 4 {
		t.Errorf("expected 4 prompt messages on the follow-up, got %d", len(completer.lastMessages))
	}
	if completer.lastMessages[0].Role != llm.RoleSystem {
		t.Errorf("first prompt message should be the system prompt")
	}
}

func TestFormatDocCapsContent(t *testing.T) {
	doc := testDoc(1, maxSnippetChars+500)
	entry := formatDoc(1, doc)
	if !strings.Contains(entry, "... [truncated]") {
		t.Error("oversized content should be marked truncated")
	}
	if strings.Contains(entry, strings.Repeat("w", maxSnippetChars+1)) {
		t.Error("content must be capped at the snippet ceiling")
	}
}
