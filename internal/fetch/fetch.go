package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

// Source pulls candidate article metadata from one upstream. Candidates
// carry no content guarantee; full text comes from the scraper later.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Article, error)
}

// All runs every source in order. A failing source logs and contributes
// nothing; the run continues with the rest. Returned errors name the source
// for the run report.
func All(ctx context.Context, sources []Source) ([]models.Article, []string) {
	var candidates []models.Article
	var sourceErrors []string

	for _, src := range sources {
		articles, err := src.Fetch(ctx)
		if err != nil {
			logger.Error("Source fetch failed, continuing without it",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			sourceErrors = append(sourceErrors, src.Name()+": "+err.Error())
			continue
		}
		logger.Info("Source fetched",
			zap.String("source", src.Name()),
			zap.Int("articles", len(articles)),
		)
		candidates = append(candidates, articles...)
	}

	return candidates, sourceErrors
}
