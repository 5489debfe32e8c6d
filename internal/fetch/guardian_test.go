package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGuardianFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("q"); got != "artificial intelligence" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("page-size"); got != "50" {
			t.Errorf("page-size = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"response": {
				"results": [
					{
						"webTitle": "AI regulation advances",
						"webUrl": "https://www.theguardian.com/tech/ai-regulation",
						"webPublicationDate": "2026-08-27T09:00:00Z"
					},
					{
						"webTitle": "missing url",
						"webUrl": ""
					}
				]
			}
		}`))
	}))
	defer srv.Close()

	src := NewGuardianSource(srv.URL, "test-key", "artificial intelligence", 5*time.Second)
	articles, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1 (no-URL result dropped)", len(articles))
	}
	a := articles[0]
	if a.Title != "AI regulation advances" ||
		a.Link != "https://www.theguardian.com/tech/ai-regulation" ||
		a.Source != "The Guardian" ||
		a.PublishedDate != "2026-08-27T09:00:00Z" {
		t.Errorf("unexpected article: %+v", a)
	}
	if a.Content != "" {
		t.Errorf("fetcher must not fill content, got %q", a.Content)
	}
}

func TestGuardianFetchMissingKey(t *testing.T) {
	src := NewGuardianSource("https://example.com", "", "ai", time.Second)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("missing API key should be an error")
	}
}

func TestGuardianFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewGuardianSource(srv.URL, "k", "ai", time.Second)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("non-200 response should be an error")
	}
}
