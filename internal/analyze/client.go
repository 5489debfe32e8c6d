package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
	"github.com/trendwatch/backend/pkg/retry"
)

// Document is one unit of text submitted for annotation.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Annotation is the service's result for one document.
type Annotation struct {
	ID         string           `json:"id"`
	Sentiment  models.Sentiment `json:"sentiment"`
	Entities   []models.Entity  `json:"entities"`
	KeyPhrases []string         `json:"key_phrases"`
}

// Annotator is the NLP annotation service boundary. A batch either succeeds
// as a whole or fails as a whole.
type Annotator interface {
	AnalyzeBatch(ctx context.Context, docs []Document) ([]Annotation, error)
}

// Client talks to a text-analytics style HTTP annotation service.
type Client struct {
	endpoint    string
	apiKey      string
	httpClient  *http.Client
	retryConfig retry.Config
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       8 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}
}

func (c *Client) AnalyzeBatch(ctx context.Context, docs []Document) ([]Annotation, error) {
	if c.endpoint == "" || c.apiKey == "" {
		return nil, fmt.Errorf("annotation service not configured")
	}

	payload, err := json.Marshal(struct {
		Documents []Document `json:"documents"`
	}{Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	return retry.DoWithResult(ctx, c.retryConfig, func() ([]Annotation, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("annotation request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, fmt.Errorf("annotation service returned status %d: %s", resp.StatusCode, body)
		}

		var result struct {
			Documents []Annotation `json:"documents"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode annotation response: %w", err)
		}

		return result.Documents, nil
	})
}
