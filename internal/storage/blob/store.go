package blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

// Store is a filesystem-backed blob store: one directory per container, one
// JSON file per blob. Run output files are stamped with the run date and
// time. JSON is written compact to keep blobs small.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// RunBlobName returns the timestamped filename for a pipeline run's output
// in the given container: {container}_{date}_{time}.json.
func RunBlobName(container string, now time.Time) string {
	base := strings.ReplaceAll(container, "-", "_")
	return fmt.Sprintf("%s_%s_%s.json", base, now.UTC().Format("2006-01-02"), now.UTC().Format("150405"))
}

func (s *Store) Put(container, name string, v interface{}) error {
	dir := filepath.Join(s.root, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create container %q: %w", container, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal blob %q: %w", name, err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %q: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize blob %q: %w", name, err)
	}

	logger.Debug("Blob written",
		zap.String("container", container),
		zap.String("name", name),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func (s *Store) Get(container, name string, out interface{}) error {
	path := filepath.Join(s.root, container, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read blob %q: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode blob %q: %w", name, err)
	}
	return nil
}

// List returns blob names in a container, sorted ascending. A missing
// container is an empty list, not an error.
func (s *Store) List(container string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, container))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list container %q: %w", container, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SaveArticles writes a run's articles to a new timestamped blob in the
// container.
func (s *Store) SaveArticles(container string, articles []models.Article, now time.Time) (string, error) {
	if len(articles) == 0 {
		logger.Info("No articles to save", zap.String("container", container))
		return "", nil
	}

	name := RunBlobName(container, now)
	if err := s.Put(container, name, articles); err != nil {
		return "", err
	}

	logger.Info("Articles saved",
		zap.String("container", container),
		zap.String("blob", name),
		zap.Int("count", len(articles)),
	)
	return name, nil
}

// LoadAllArticles combines every article blob in a container. Registry and
// reindex paths use it to walk the full corpus.
func (s *Store) LoadAllArticles(container string) ([]models.Article, error) {
	names, err := s.List(container)
	if err != nil {
		return nil, err
	}

	prefix := strings.ReplaceAll(container, "-", "_")
	var all []models.Article
	var loaded int
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		var batch []models.Article
		if err := s.Get(container, name, &batch); err != nil {
			logger.Warn("Skipping unreadable blob",
				zap.String("container", container),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		loaded++
		all = append(all, batch...)
	}

	logger.Info("Historical articles loaded",
		zap.String("container", container),
		zap.Int("blobs", loaded),
		zap.Int("articles", len(all)),
	)
	return all, nil
}
