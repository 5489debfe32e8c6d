package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestScraper(cfg Config) (*Scraper, *[]time.Duration) {
	s := New(cfg)
	var delays []time.Duration
	s.sleep = func(d time.Duration) { delays = append(delays, d) }
	return s, &delays
}

func TestExtractUsesArticleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><p>The actual story.</p></article></body></html>`))
	}))
	defer srv.Close()

	s, _ := newTestScraper(Config{})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "The actual story." {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtractFallbackOrder(t *testing.T) {
	// No article or main element; entry-content outranks post-content.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div class="post-content">wrong body</div>
			<div class="entry-content">right body</div>
		</body></html>`))
	}))
	defer srv.Close()

	s, _ := newTestScraper(Config{})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "right body" {
		t.Errorf("fallback order violated: got %q", got)
	}
}

func TestExtractNoStrategyMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="unrelated">nothing here</div></body></html>`))
	}))
	defer srv.Close()

	s, _ := newTestScraper(Config{})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty content, got %q", got)
	}
}

func TestExtractSkipsOversizedBody(t *testing.T) {
	body := `<html><body><article>` + strings.Repeat("x", 4096) + `</article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s, _ := newTestScraper(Config{MaxBodyBytes: 1024})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "" {
		t.Errorf("oversized page must be skipped, got %d chars", len(got))
	}
}

func TestExtractRateLimitBackoff(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, delays := newTestScraper(Config{MaxAttempts: 4, InitialDelay: time.Second})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "" {
		t.Errorf("exhausted retries must yield empty content, got %q", got)
	}
	if hits != 4 {
		t.Errorf("server hit %d times, want 4 attempts", hits)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("got %d backoff delays (%v), want %d", len(*delays), *delays, len(want))
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay %d = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestExtractRecoversAfterRateLimit(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`<html><body><article>finally</article></body></html>`))
	}))
	defer srv.Close()

	s, delays := newTestScraper(Config{MaxAttempts: 4, InitialDelay: time.Second})
	got, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "finally" {
		t.Errorf("Extract = %q", got)
	}
	if len(*delays) != 2 {
		t.Errorf("expected 2 backoff sleeps before success, got %v", *delays)
	}
}

func TestStrategiesForSiteRuleFirst(t *testing.T) {
	chain := StrategiesFor("venturebeat.com")
	if chain[0].Selector != "div.article-body" {
		t.Errorf("site rule should lead the chain, got %q", chain[0].Selector)
	}

	seen := make(map[string]bool)
	for _, st := range chain {
		if seen[st.Selector] {
			t.Errorf("duplicate selector in chain: %q", st.Selector)
		}
		seen[st.Selector] = true
	}

	generic := StrategiesFor("unknown.example.com")
	if generic[0].Selector != "article" {
		t.Errorf("unknown host should start with the generic article tag, got %q", generic[0].Selector)
	}
}

func TestFixEncoding(t *testing.T) {
	in := "Itâ€™s a â€œtestâ€"
	got := fixEncoding(in)
	if strings.Contains(got, "â€") {
		t.Errorf("mojibake not repaired: %q", got)
	}
	if !strings.Contains(got, "It's") {
		t.Errorf("apostrophe not restored: %q", got)
	}
}
