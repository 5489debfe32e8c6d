package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ArticlesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_articles_fetched_total",
			Help: "Candidate articles fetched from all sources",
		},
	)

	DuplicatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_duplicates_skipped_total",
			Help: "Candidates skipped because their link was already processed",
		},
	)

	ScrapeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_scrape_failures_total",
			Help: "Pages that yielded no extractable content",
		},
	)

	AnnotationBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_annotation_batches_total",
			Help: "Batches submitted to the annotation service",
		},
	)

	Truncations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_annotation_truncations_total",
			Help: "Documents truncated to the per-document character ceiling",
		},
	)

	ArticlesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_articles_indexed_total",
			Help: "Documents uploaded to the search index",
		},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendwatch_query_duration_seconds",
			Help:    "Chat query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)

	RetrievalFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_retrieval_failures_total",
			Help: "Chat queries that failed at the retrieval stage",
		},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_generation_failures_total",
			Help: "Chat queries that failed at the completion stage",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_answer_cache_hits_total",
			Help: "Chat answers served from the cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trendwatch_answer_cache_misses_total",
			Help: "Chat queries not found in the cache",
		},
	)
)

func Init() {
	prometheus.MustRegister(ArticlesFetched)
	prometheus.MustRegister(DuplicatesSkipped)
	prometheus.MustRegister(ScrapeFailures)
	prometheus.MustRegister(AnnotationBatches)
	prometheus.MustRegister(Truncations)
	prometheus.MustRegister(ArticlesIndexed)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(RetrievalFailures)
	prometheus.MustRegister(GenerationFailures)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
