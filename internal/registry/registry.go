package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/pkg/logger"
)

// BlobName is the registry's blob inside the analyzed-articles container.
const BlobName = "processed_urls.json"

// BlobStore is the slice of the corpus store the registry needs.
type BlobStore interface {
	Put(container, name string, v interface{}) error
	Get(container, name string, out interface{}) error
}

// Registry is the durable set of links that completed analysis. It is loaded
// once per pipeline run, checked before any scraping, and written back once
// after analysis succeeds. It only grows; Reset is an explicit operator
// action.
type Registry struct {
	store     BlobStore
	container string
	known     map[string]struct{}
}

// Load reads the registry from the store. A missing or corrupt backing blob
// must not block ingestion: the registry starts empty and historical links
// will be reprocessed.
func Load(store BlobStore, container string) *Registry {
	r := &Registry{
		store:     store,
		container: container,
		known:     make(map[string]struct{}),
	}

	var urls []string
	if err := store.Get(container, BlobName, &urls); err != nil {
		logger.Warn("URL registry unavailable, proceeding with empty set; historical links may be reprocessed",
			zap.String("container", container),
			zap.Error(err),
		)
		return r
	}

	for _, u := range urls {
		if u != "" {
			r.known[u] = struct{}{}
		}
	}

	logger.Info("URL registry loaded",
		zap.String("container", container),
		zap.Int("urls", len(r.known)),
	)
	return r
}

func (r *Registry) Contains(link string) bool {
	_, ok := r.known[link]
	return ok
}

func (r *Registry) Len() int {
	return len(r.known)
}

// AddAll records links as processed and persists the whole set in one write.
func (r *Registry) AddAll(links []string) error {
	added := 0
	for _, link := range links {
		if link == "" {
			continue
		}
		if _, ok := r.known[link]; !ok {
			r.known[link] = struct{}{}
			added++
		}
	}

	if added == 0 {
		return nil
	}

	if err := r.persist(); err != nil {
		return fmt.Errorf("failed to persist url registry: %w", err)
	}

	logger.Info("URL registry updated",
		zap.Int("added", added),
		zap.Int("total", len(r.known)),
	)
	return nil
}

// Reset clears the registry. Operator-only; the next run reprocesses
// everything still reachable from the sources.
func (r *Registry) Reset() error {
	r.known = make(map[string]struct{})
	return r.persist()
}

func (r *Registry) persist() error {
	urls := make([]string, 0, len(r.known))
	for u := range r.known {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return r.store.Put(r.container, BlobName, urls)
}
