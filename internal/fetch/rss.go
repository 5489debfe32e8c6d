package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/trendwatch/backend/internal/storage/models"
)

// RSSSource fetches candidates from a single RSS or Atom feed. The feed
// summary is kept as provisional content; a later scrape replaces it with the
// full article body.
type RSSSource struct {
	feedURL string
	host    string
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewRSSSource(feedURL string, timeout time.Duration) *RSSSource {
	host := feedURL
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &RSSSource{
		feedURL: feedURL,
		host:    host,
		parser:  gofeed.NewParser(),
		timeout: timeout,
	}
}

func (r *RSSSource) Name() string {
	return r.host
}

func (r *RSSSource) Fetch(ctx context.Context) ([]models.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", r.feedURL, err)
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		published := item.Published
		if published == "" && item.PublishedParsed != nil {
			published = item.PublishedParsed.Format(time.RFC3339)
		}

		articles = append(articles, models.Article{
			Title:         item.Title,
			Link:          item.Link,
			Content:       item.Description,
			Source:        r.host,
			PublishedDate: published,
		})
	}

	return articles, nil
}
