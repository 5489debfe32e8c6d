package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/analyze"
	"github.com/trendwatch/backend/internal/fetch"
	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/metrics"
	"github.com/trendwatch/backend/internal/pipeline"
	"github.com/trendwatch/backend/internal/registry"
	"github.com/trendwatch/backend/internal/scraper"
	"github.com/trendwatch/backend/internal/storage/blob"
	"github.com/trendwatch/backend/internal/storage/models"
	"github.com/trendwatch/backend/pkg/config"
	appLogger "github.com/trendwatch/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	root := &cobra.Command{
		Use:   "pipeline",
		Short: "trendwatch ingestion pipeline",
		Long:  "Fetches, deduplicates, scrapes, analyzes and indexes AI news articles.",
	}

	root.AddCommand(runCmd(cfg))
	root.AddCommand(resetRegistryCmd(cfg))
	root.AddCommand(reindexCmd(cfg))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd(cfg *config.Config) *cobra.Command {
	var timeoutMin int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full ingestion run",
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics.Init()

			store, err := blob.NewStore(cfg.Storage.Root)
			if err != nil {
				return err
			}

			index, err := sqlite.NewClient(cfg.Index.Path)
			if err != nil {
				return err
			}
			defer index.Close()

			if err := index.InitSchema(); err != nil {
				return err
			}

			timeout := time.Duration(cfg.Fetch.TimeoutSec) * time.Second
			var sources []fetch.Source
			if cfg.Fetch.GuardianAPIKey != "" {
				sources = append(sources, fetch.NewGuardianSource(
					cfg.Fetch.GuardianURL,
					cfg.Fetch.GuardianAPIKey,
					cfg.Fetch.Query,
					timeout,
				))
			}
			for _, feedURL := range cfg.Fetch.RSSFeeds {
				sources = append(sources, fetch.NewRSSSource(feedURL, timeout))
			}

			pipe := pipeline.New(
				sources,
				scraper.New(scraper.Config{
					MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
					MaxAttempts:  cfg.Scraper.MaxAttempts,
					InitialDelay: time.Duration(cfg.Scraper.InitialDelaySec) * time.Second,
					Timeout:      time.Duration(cfg.Scraper.TimeoutSec) * time.Second,
				}),
				analyze.NewAnalyzer(
					analyze.NewClient(cfg.Language.Endpoint, cfg.Language.APIKey, time.Duration(cfg.Language.TimeoutSec)*time.Second),
					cfg.Language.BatchSize,
					cfg.Language.MaxDocChars,
				),
				store,
				index,
				pipeline.Config{
					RawContainer:      cfg.Storage.RawContainer,
					AnalyzedContainer: cfg.Storage.AnalyzedContainer,
					MinContentChars:   cfg.Pipeline.MinContentChars,
				},
			)

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMin)*time.Minute)
			defer cancel()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := pipe.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Run complete: fetched=%d duplicates=%d scraped=%d too_short=%d analyzed=%d unannotated=%d indexed=%d\n",
				report.Fetched, report.Duplicates, report.Scraped,
				report.TooShort, report.Analyzed, report.Unannotated, report.Indexed)
			for _, e := range report.SourceErrors {
				fmt.Printf("source error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutMin, "timeout", 60, "overall run timeout in minutes")
	return cmd
}

func resetRegistryCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-registry",
		Short: "Clear the processed-URL registry so all articles are re-fetched",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := blob.NewStore(cfg.Storage.Root)
			if err != nil {
				return err
			}

			reg := registry.Load(store, cfg.Storage.AnalyzedContainer)
			before := reg.Len()
			if err := reg.Reset(); err != nil {
				return err
			}

			appLogger.Info("Registry reset", zap.Int("links_removed", before))
			fmt.Printf("Registry reset: %d links removed\n", before)
			return nil
		},
	}
}

func reindexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the analyzed corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := blob.NewStore(cfg.Storage.Root)
			if err != nil {
				return err
			}

			index, err := sqlite.NewClient(cfg.Index.Path)
			if err != nil {
				return err
			}
			defer index.Close()

			if err := index.InitSchema(); err != nil {
				return err
			}

			articles, err := store.LoadAllArticles(cfg.Storage.AnalyzedContainer)
			if err != nil {
				return err
			}

			now := time.Now()
			docs := make([]models.IndexedDocument, 0, len(articles))
			for _, a := range articles {
				docs = append(docs, sqlite.Transform(a, now))
			}

			indexed, err := index.Upload(docs)
			if err != nil {
				return err
			}

			fmt.Printf("Reindex complete: %d documents indexed from %d articles\n", indexed, len(articles))
			return nil
		},
	}
}
