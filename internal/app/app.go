// Package app wires the pipeline together and runs one aggregation pass.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/chnews/internal/config"
	"github.com/deusflow/chnews/internal/dates"
	"github.com/deusflow/chnews/internal/dedup"
	"github.com/deusflow/chnews/internal/feed"
	"github.com/deusflow/chnews/internal/gemini"
	"github.com/deusflow/chnews/internal/logger"
	"github.com/deusflow/chnews/internal/metrics"
	"github.com/deusflow/chnews/internal/pipeline"
	"github.com/deusflow/chnews/internal/ratelimit"
	"github.com/deusflow/chnews/internal/relevance"
	"github.com/deusflow/chnews/internal/retry"
	"github.com/deusflow/chnews/internal/scraper"
	"github.com/deusflow/chnews/internal/sheets"
	"github.com/deusflow/chnews/internal/telegram"
	"github.com/deusflow/chnews/internal/translate"
)

// Run performs one full pass: fetch feeds, filter, extract, enrich,
// publish and record the run. Per-article failures are logged and
// skipped; only a missing source list or an unusable sink is fatal.
func Run(ctx context.Context) error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init()
	log := logger.With("app")

	sources, err := feed.LoadSources(cfg.FeedsConfigPath)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no feed sources configured in %s", cfg.FeedsConfigPath)
	}

	seen, closeSeen, err := openDedupStore(cfg)
	if err != nil {
		return fmt.Errorf("open dedup store: %w", err)
	}
	defer closeSeen()
	if err := seen.Load(); err != nil {
		return fmt.Errorf("load seen set: %w", err)
	}

	window := dates.Today()
	if cfg.WindowPolicy == "hours" {
		window = dates.LastHours(cfg.WindowHours)
	}

	agg := feed.NewAggregator()
	articles, fetchErrs := agg.FetchAll(ctx, sources, window, cfg.FetchConcurrency)
	for _, ferr := range fetchErrs {
		log.Warn("feed fetch failed", "error", ferr)
	}
	metrics.Global.AddEntriesSeen(len(articles))
	log.Info("feeds fetched", "sources", len(sources), "articles", len(articles), "failures", len(fetchErrs))

	candidates := selectCandidates(articles, cfg.ClassifyEnabled && cfg.GeminiAPIKey != "")
	log.Info("keyword filter applied", "candidates", len(candidates), "languages", languageStats(candidates))
	if len(candidates) == 0 {
		metrics.Global.RecordRun(time.Since(start))
		log.Info("nothing to publish today")
		return nil
	}

	extractFullText(ctx, cfg, candidates)

	orch, cleanup, err := buildOrchestrator(ctx, cfg, seen)
	if err != nil {
		return err
	}
	defer cleanup()

	report := orch.Run(ctx, candidates)
	for _, rerr := range report.Errors {
		log.Warn("pipeline error", "error", rerr)
	}
	log.Info("run finished",
		"processed", report.Processed,
		"published", report.Published,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected,
		"duration", time.Since(start).Round(time.Millisecond))

	if cfg.ModerationEnabled && len(report.Records) > 0 {
		store, serr := sheets.New(ctx, cfg.SheetsCredentialsPath, cfg.SpreadsheetID)
		if serr != nil {
			log.Error("sheets unavailable, skipping moderation log", "error", serr)
		} else if serr := store.AppendRecords(ctx, report.Records); serr != nil {
			log.Error("append to moderation sheet failed", "error", serr)
		}
	}

	metrics.Global.RecordRun(time.Since(start))
	return nil
}

// PublishApproved posts every editor-approved row that has not been
// published yet, marking each row right after its confirmed post.
func PublishApproved(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init()
	log := logger.With("app")

	if !cfg.ModerationEnabled {
		return fmt.Errorf("moderation disabled: GOOGLE_SHEETS_CREDENTIALS and SPREADSHEET_ID are required")
	}

	store, err := sheets.New(ctx, cfg.SheetsCredentialsPath, cfg.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("open moderation sheet: %w", err)
	}

	rows, err := store.ApprovedUnpublished(ctx)
	if err != nil {
		return fmt.Errorf("query approved rows: %w", err)
	}
	if len(rows) == 0 {
		log.Info("no approved unpublished rows")
		return nil
	}

	sink := telegram.NewSink(cfg.TelegramToken, cfg.TelegramChatID)
	retryCfg := retry.Config{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}

	published := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			select {
			case <-time.After(cfg.PostInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		rec := row.Record
		if perr := retry.WithRetry(ctx, retryCfg, func() error {
			return sink.Publish(ctx, rec)
		}); perr != nil {
			log.Error("publish failed", "row", row.Index, "title", rec.Title, "error", perr)
			continue
		}
		if merr := store.MarkPublished(ctx, row.Index); merr != nil {
			log.Error("row published but not marked", "row", row.Index, "error", merr)
			continue
		}
		metrics.Global.IncrementPublished()
		published++
	}

	log.Info("approved rows published", "published", published, "total", len(rows))
	return nil
}

func openDedupStore(cfg *config.Config) (dedup.Store, func(), error) {
	if cfg.DedupBackend == "postgres" {
		ps, err := dedup.NewPostgresStore(cfg.DatabaseURL, cfg.DedupCapacity)
		if err != nil {
			return nil, nil, err
		}
		return ps, func() { _ = ps.Close() }, nil
	}
	return dedup.NewFileStore(cfg.DedupFilePath, cfg.DedupCapacity), func() {}, nil
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, seen dedup.Store) (*pipeline.Orchestrator, func(), error) {
	log := logger.With("app")

	var classifier relevance.External
	var summarizer pipeline.Summarizer
	cleanup := func() {}

	if cfg.GeminiAPIKey != "" {
		gem, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Warn("gemini unavailable, running without it", "error", err)
		} else {
			classifier = gem
			summarizer = gem
			cleanup = gem.Close
		}
	}

	var translator pipeline.Translator
	if cfg.TranslateEnabled {
		translator = translate.NewLayered(cfg.OpenAIAPIKey)
	}

	sink := telegram.NewSink(cfg.TelegramToken, cfg.TelegramChatID)

	pacer := ratelimit.NewPacer(cfg.AIMinInterval, cfg.AIDailyBudget)

	orch := pipeline.New(classifier, translator, summarizer, sink, seen, pacer, pipeline.Options{
		ClassifyEnabled:  cfg.ClassifyEnabled,
		TranslateEnabled: cfg.TranslateEnabled,
		SummarizeEnabled: cfg.SummarizeEnabled,
		FormatEnabled:    cfg.FormatEnabled,
		Retry:            retry.Config{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true},
		PostInterval:     cfg.PostInterval,
	})
	return orch, cleanup, nil
}

// selectCandidates picks the articles worth enriching. Keyword matches
// always pass. Keyword-negatives pass only when an external classifier is
// configured, so its verdict can overturn them in the classify stage.
func selectCandidates(articles []feed.Article, classifierConfigured bool) []feed.Article {
	var out []feed.Article
	for _, art := range articles {
		switch {
		case art.Relevant:
			metrics.Global.IncrementRelevant()
			out = append(out, art)
		case classifierConfigured:
			out = append(out, art)
		}
	}
	return out
}

// extractFullText fills in FullText for keyword-positive articles whose
// feed entry had only a teaser. Keyword-negatives skip extraction; the
// classifier sees title and description, and only its positives are worth
// a page fetch later. Extraction failures leave FullText empty; downstream
// stages fall back to the description.
func extractFullText(ctx context.Context, cfg *config.Config, articles []feed.Article) {
	ext := scraper.NewExtractor(15 * time.Second)

	var urls []string
	for _, art := range articles {
		if art.Relevant && art.FullText == "" {
			urls = append(urls, art.URL)
		}
	}
	if len(urls) == 0 {
		return
	}

	bodies := ext.ExtractAll(ctx, urls, cfg.ScrapeConcurrency)
	for i := range articles {
		if !articles[i].Relevant || articles[i].FullText != "" {
			continue
		}
		if body, ok := bodies[articles[i].URL]; ok && body != "" {
			articles[i].FullText = body
		} else {
			metrics.Global.IncrementExtractionFailures()
		}
	}
}

func languageStats(articles []feed.Article) map[string]int {
	stats := make(map[string]int)
	for _, art := range articles {
		stats[art.Language]++
	}
	return stats
}
