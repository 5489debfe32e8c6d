// Package pipeline runs the sequential ingestion batch job: fetch,
// deduplicate, scrape, normalize, filter, analyze, persist, index. Stages
// degrade rather than abort; the run's outcome is aggregated in a RunReport.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/analyze"
	"github.com/trendwatch/backend/internal/clean"
	"github.com/trendwatch/backend/internal/fetch"
	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/metrics"
	"github.com/trendwatch/backend/internal/registry"
	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/logger"
)

type Scraper interface {
	Extract(ctx context.Context, url string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, articles []models.Article) ([]models.Article, analyze.Stats)
}

type Store interface {
	registry.BlobStore
	SaveArticles(container string, articles []models.Article, now time.Time) (string, error)
}

type Indexer interface {
	Upload(docs []models.IndexedDocument) (int, error)
}

type Config struct {
	RawContainer      string
	AnalyzedContainer string
	ReportContainer   string
	MinContentChars   int
}

type Pipeline struct {
	sources  []fetch.Source
	scraper  Scraper
	analyzer Analyzer
	store    Store
	indexer  Indexer
	cfg      Config

	now func() time.Time
}

func New(sources []fetch.Source, scraper Scraper, analyzer Analyzer, store Store, indexer Indexer, cfg Config) *Pipeline {
	if cfg.MinContentChars == 0 {
		cfg.MinContentChars = 100
	}
	if cfg.ReportContainer == "" {
		cfg.ReportContainer = "run-reports"
	}
	return &Pipeline{
		sources:  sources,
		scraper:  scraper,
		analyzer: analyzer,
		store:    store,
		indexer:  indexer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run executes one full ingestion pass. The registry is read before any
// scraping and written only after analyzed articles are persisted, so a
// crashed run leaves it at its pre-run state and the next run retries.
func (p *Pipeline) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{StartedAt: p.now()}

	logger.Info("Pipeline run started")

	// Stage 1: fetch candidates from all sources.
	candidates, sourceErrors := fetch.All(ctx, p.sources)
	report.Fetched = len(candidates)
	report.SourceErrors = sourceErrors
	metrics.ArticlesFetched.Add(float64(len(candidates)))

	// Stage 2: dedup against the registry before the expensive stages.
	reg := registry.Load(p.store, p.cfg.AnalyzedContainer)

	fresh := make([]models.Article, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Link == "" || seen[c.Link] {
			continue
		}
		seen[c.Link] = true
		if reg.Contains(c.Link) {
			report.Duplicates++
			continue
		}
		fresh = append(fresh, c)
	}
	metrics.DuplicatesSkipped.Add(float64(report.Duplicates))
	logger.Info("Deduplication complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("fresh", len(fresh)),
	)

	if len(fresh) == 0 {
		logger.Info("No new unique articles, pipeline finished")
		report.FinishedAt = p.now()
		p.saveReport(report)
		return report, nil
	}

	// Stage 3: scrape full bodies, then normalize. An empty scrape keeps
	// whatever summary the feed provided; normalization decides its fate.
	for i := range fresh {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		content, err := p.scraper.Extract(ctx, fresh[i].Link)
		if err != nil {
			return report, err
		}
		if content != "" {
			fresh[i].Content = content
			report.Scraped++
		} else {
			report.ScrapeEmpty++
			metrics.ScrapeFailures.Inc()
		}
		fresh[i].Content = clean.Normalize(fresh[i].Content)
	}

	// Stage 4: drop near-empty articles before the paid annotation step.
	eligible := make([]models.Article, 0, len(fresh))
	for _, a := range fresh {
		if clean.LongEnough(a.Content, p.cfg.MinContentChars) {
			eligible = append(eligible, a)
		} else {
			report.TooShort++
		}
	}
	if report.TooShort > 0 {
		logger.Warn("Filtered out articles with insufficient content",
			zap.Int("dropped", report.TooShort),
			zap.Int("min_chars", p.cfg.MinContentChars),
		)
	}

	if len(eligible) == 0 {
		logger.Info("No articles with sufficient content, pipeline finished")
		report.FinishedAt = p.now()
		p.saveReport(report)
		return report, nil
	}

	// Stage 5: persist raw articles.
	if _, err := p.store.SaveArticles(p.cfg.RawContainer, eligible, p.now()); err != nil {
		logger.Error("Failed to save raw articles", zap.Error(err))
	}

	// Stage 6: batch analysis. Batch failures pass articles through
	// unannotated; raw content is never lost here.
	analyzed, stats := p.analyzer.Analyze(ctx, eligible)
	report.Analyzed = stats.Annotated
	report.Unannotated = stats.Unannotated
	report.Truncated = len(stats.TruncatedLinks)
	metrics.AnnotationBatches.Add(float64(stats.Batches))
	metrics.Truncations.Add(float64(report.Truncated))

	// Stage 7: persist analyzed articles.
	if _, err := p.store.SaveArticles(p.cfg.AnalyzedContainer, analyzed, p.now()); err != nil {
		logger.Error("Failed to save analyzed articles", zap.Error(err))
	}

	// Stage 8: register only links whose annotation succeeded, so a later
	// run retries the unannotated ones.
	var processed []string
	for _, a := range analyzed {
		if a.Analyzed() {
			processed = append(processed, a.Link)
		}
	}
	if err := reg.AddAll(processed); err != nil {
		logger.Error("Failed to update url registry", zap.Error(err))
	}

	// Stage 9: project into the search index. The index may lag the corpus
	// by a run; it reconciles on the next upload.
	docs := make([]models.IndexedDocument, 0, len(analyzed))
	for _, a := range analyzed {
		docs = append(docs, sqlite.Transform(a, p.now()))
	}
	indexed, err := p.indexer.Upload(docs)
	if err != nil {
		logger.Error("Failed to upload to search index", zap.Error(err))
	}
	report.Indexed = indexed
	metrics.ArticlesIndexed.Add(float64(indexed))

	report.FinishedAt = p.now()
	p.saveReport(report)

	logger.Info("Pipeline run finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("unannotated", report.Unannotated),
		zap.Int("indexed", report.Indexed),
	)

	return report, nil
}

func (p *Pipeline) saveReport(report *models.RunReport) {
	name := "report_" + report.StartedAt.UTC().Format("2006-01-02_150405") + ".json"
	if err := p.store.Put(p.cfg.ReportContainer, name, report); err != nil {
		logger.Warn("Failed to persist run report", zap.Error(err))
	}
}
