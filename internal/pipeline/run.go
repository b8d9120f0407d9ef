package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/chnews/internal/dedup"
	"github.com/deusflow/chnews/internal/feed"
	"github.com/deusflow/chnews/internal/metrics"
	"github.com/deusflow/chnews/internal/retry"
)

// RunReport enumerates what happened to each article of a run. Recoverable
// errors are collected for observability, not used to abort.
type RunReport struct {
	Processed  int
	Published  int
	Duplicates int
	Rejected   int
	Records    []EnrichedRecord
	Errors     []error
}

// Run processes articles sequentially end to end: dedup check, enrichment,
// publication, then mark-and-save of the seen set. The seen set is marked
// only after the sink confirms handoff, and its writes are serialized by
// this single loop. Cancellation is honored between articles and at stage
// boundaries, never mid-stage.
func (o *Orchestrator) Run(ctx context.Context, articles []feed.Article) RunReport {
	var report RunReport

	for i, art := range articles {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("run cancelled after %d articles: %w", i, err))
			return report
		}

		key := dedup.Fingerprint(art.URL)
		if o.seen.Has(key) {
			o.log.Debug("duplicate skipped", "title", art.Title, "url", art.URL)
			metrics.Global.IncrementDuplicates()
			report.Duplicates++
			continue
		}

		rec, err := o.Enrich(ctx, art)
		if err != nil {
			if errors.Is(err, ErrNotRelevant) {
				o.log.Info("article rejected by classification", "title", art.Title)
				report.Rejected++
				continue
			}
			if ctx.Err() != nil {
				report.Errors = append(report.Errors, err)
				return report
			}
			report.Errors = append(report.Errors, fmt.Errorf("enrich %q: %w", art.Title, err))
			continue
		}
		report.Processed++
		report.Records = append(report.Records, *rec)

		if o.sink == nil {
			continue
		}

		if i > 0 && o.opts.PostInterval > 0 {
			select {
			case <-ctx.Done():
				report.Errors = append(report.Errors, ctx.Err())
				return report
			case <-time.After(o.opts.PostInterval):
			}
		}

		if err := o.publish(ctx, *rec); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("publish %q: %w", rec.Title, err))
			continue
		}
		report.Published++
		metrics.Global.IncrementPublished()

		// Mark only after confirmed handoff: a crash between send and
		// mark re-publishes at most once, never loses the article.
		if err := o.seen.MarkSeen(key); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("mark seen %q: %w", rec.SourceURL, err))
			continue
		}
		if err := o.seen.Save(); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("save seen set: %w", err))
		}
	}

	return report
}

func (o *Orchestrator) publish(ctx context.Context, rec EnrichedRecord) error {
	return retry.WithRetry(ctx, retry.Config{
		MaxAttempts: o.opts.Retry.MaxAttempts,
		Delay:       o.opts.Retry.Delay,
		Backoff:     true,
	}, func() error {
		return o.sink.Publish(ctx, rec)
	})
}
