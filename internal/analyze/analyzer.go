package analyze

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

// Stats records what the analyzer did to a run's articles.
type Stats struct {
	Batches        int
	Annotated      int
	Unannotated    int
	TruncatedLinks []string
}

// Analyzer partitions articles into fixed-size batches for the annotation
// service, truncating any document over the per-document character ceiling.
// A failed batch returns its articles unannotated; raw content is never lost
// to an annotation failure.
type Analyzer struct {
	client      Annotator
	batchSize   int
	maxDocChars int
}

func NewAnalyzer(client Annotator, batchSize, maxDocChars int) *Analyzer {
	if batchSize <= 0 {
		batchSize = 25
	}
	if maxDocChars <= 0 {
		maxDocChars = 5120
	}
	return &Analyzer{
		client:      client,
		batchSize:   batchSize,
		maxDocChars: maxDocChars,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, articles []models.Article) ([]models.Article, Stats) {
	var stats Stats
	out := make([]models.Article, 0, len(articles))

	for start := 0; start < len(articles); start += a.batchSize {
		end := start + a.batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]
		stats.Batches++

		docs := make([]Document, 0, len(batch))
		for _, article := range batch {
			text := article.Content
			if len(text) > a.maxDocChars {
				logger.Warn("Truncating article for annotation; results may miss dropped text",
					zap.String("link", article.Link),
					zap.Int("original_chars", len(text)),
					zap.Int("limit_chars", a.maxDocChars),
				)
				stats.TruncatedLinks = append(stats.TruncatedLinks, article.Link)
				text = truncateAtRune(text, a.maxDocChars)
			}
			docs = append(docs, Document{ID: article.Link, Text: text})
		}

		logger.Info("Analyzing batch", zap.Int("size", len(batch)))

		annotations, err := a.client.AnalyzeBatch(ctx, docs)
		if err != nil {
			logger.Error("Annotation batch failed, passing articles through unannotated",
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			stats.Unannotated += len(batch)
			out = append(out, batch...)
			continue
		}

		byID := make(map[string]Annotation, len(annotations))
		for _, ann := range annotations {
			byID[ann.ID] = ann
		}

		for _, article := range batch {
			ann, ok := byID[article.Link]
			if !ok {
				logger.Warn("No annotation returned for document", zap.String("link", article.Link))
				stats.Unannotated++
				out = append(out, article)
				continue
			}

			sentiment := ann.Sentiment
			article.Sentiment = &sentiment
			article.KeyPhrases = ann.KeyPhrases
			article.Entities = ann.Entities
			stats.Annotated++
			out = append(out, article)
		}
	}

	return out, stats
}

// truncateAtRune cuts text to at most limit bytes without splitting a
// multibyte rune, so the annotation service always receives valid UTF-8.
func truncateAtRune(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
