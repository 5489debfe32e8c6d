package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/trendwatch/backend/internal/storage/models"
)

// GuardianSource fetches article metadata from the Guardian Open Platform
// search API. Bodies are left empty; the scraper fills them in after
// deduplication.
type GuardianSource struct {
	baseURL    string
	apiKey     string
	query      string
	httpClient *http.Client
}

func NewGuardianSource(baseURL, apiKey, query string, timeout time.Duration) *GuardianSource {
	return &GuardianSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		query:   query,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *GuardianSource) Name() string {
	return "The Guardian"
}

func (g *GuardianSource) Fetch(ctx context.Context) ([]models.Article, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("guardian api key not configured")
	}

	params := url.Values{}
	params.Set("api-key", g.apiKey)
	params.Set("q", g.query)
	params.Set("page-size", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guardian results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("guardian api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read guardian response: %w", err)
	}

	var payload struct {
		Response struct {
			Results []struct {
				WebTitle           string `json:"webTitle"`
				WebURL             string `json:"webUrl"`
				WebPublicationDate string `json:"webPublicationDate"`
			} `json:"results"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode guardian response: %w", err)
	}

	articles := make([]models.Article, 0, len(payload.Response.Results))
	for _, r := range payload.Response.Results {
		if r.WebURL == "" {
			continue
		}
		articles = append(articles, models.Article{
			Title:         r.WebTitle,
			Link:          r.WebURL,
			Source:        g.Name(),
			PublishedDate: r.WebPublicationDate,
		})
	}

	return articles, nil
}
