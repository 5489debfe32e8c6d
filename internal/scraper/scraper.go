package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/pkg/logger"
)

var (
	// ErrRateLimited marks a 429 from the peer; retried with backoff.
	ErrRateLimited = errors.New("rate limited by peer")
	// ErrBodyTooLarge marks a page over the size ceiling; never parsed.
	ErrBodyTooLarge = errors.New("page body exceeds size ceiling")
)

type Config struct {
	MaxBodyBytes int64
	MaxAttempts  int
	InitialDelay time.Duration
	Timeout      time.Duration
}

// Scraper retrieves full page content and extracts the article body via a
// prioritized strategy chain. All extraction failures are soft: the caller
// gets empty content and the pipeline moves on.
type Scraper struct {
	client       *http.Client
	maxBodyBytes int64
	maxAttempts  int
	initialDelay time.Duration

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(time.Duration)
}

func New(cfg Config) *Scraper {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 5 * 1024 * 1024
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxBodyBytes: cfg.MaxBodyBytes,
		maxAttempts:  cfg.MaxAttempts,
		initialDelay: cfg.InitialDelay,
		sleep:        time.Sleep,
	}
}

// Extract returns the article body text for the URL, or "" when the page
// cannot be fetched or no strategy matches. Only a cancelled context is
// returned as an error.
func (s *Scraper) Extract(ctx context.Context, pageURL string) (string, error) {
	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		switch {
		case errors.Is(err, ErrBodyTooLarge):
			logger.Warn("Page too large, skipping extraction",
				zap.String("url", pageURL),
				zap.Int64("limit_bytes", s.maxBodyBytes),
			)
		case errors.Is(err, ErrRateLimited):
			logger.Warn("Rate limit retries exhausted",
				zap.String("url", pageURL),
				zap.Int("attempts", s.maxAttempts),
			)
		default:
			logger.Warn("Failed to fetch page", zap.String("url", pageURL), zap.Error(err))
		}
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		logger.Warn("Failed to parse page", zap.String("url", pageURL), zap.Error(err))
		return "", nil
	}

	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}

	for _, st := range StrategiesFor(host) {
		if text := st.TryExtract(doc); text != "" {
			logger.Info("Content extracted",
				zap.String("url", pageURL),
				zap.String("strategy", st.Name),
				zap.Int("chars", len(text)),
			)
			return fixEncoding(text), nil
		}
	}

	logger.Warn("No extraction strategy matched", zap.String("url", pageURL))
	return "", nil
}

// fetch retrieves the page with exponential backoff on 429 responses:
// delays double from the initial unit (1,2,4,8) across maxAttempts tries.
// The body is never read past the size ceiling.
func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	delay := s.initialDelay

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		body, err := s.fetchOnce(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}

		logger.Warn("Rate limited, backing off",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		s.sleep(delay)
		delay *= 2

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", lastErr
}

func (s *Scraper) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("status code " + resp.Status)
	}

	if resp.ContentLength > s.maxBodyBytes {
		return "", ErrBodyTooLarge
	}

	// Read one byte past the ceiling to detect oversized bodies that did
	// not declare a Content-Length.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxBodyBytes {
		return "", ErrBodyTooLarge
	}

	return string(data), nil
}

// fixEncoding repairs common UTF-8 text that was decoded as Windows-1252
// somewhere upstream.
func fixEncoding(text string) string {
	replacer := strings.NewReplacer(
		"â€™", "'",
		"â€“", "—",
		"â€œ", `"`,
		"â€", `"`,
	)
	return replacer.Replace(text)
}
