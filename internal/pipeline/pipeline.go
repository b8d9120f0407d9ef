// Package pipeline sequences the enrichment stages for each relevant
// article and hands the result to the publication sink. A stage failure
// degrades the article, it never aborts the run; only a firm "not
// relevant" classification drops an article.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/chnews/internal/dedup"
	"github.com/deusflow/chnews/internal/feed"
	"github.com/deusflow/chnews/internal/metrics"
	"github.com/deusflow/chnews/internal/ratelimit"
	"github.com/deusflow/chnews/internal/relevance"
	"github.com/deusflow/chnews/internal/retry"
	"github.com/deusflow/chnews/internal/textutil"
)

// Stage names, in execution order.
const (
	StageClassify  = "classify"
	StageTranslate = "translate"
	StageSummarize = "summarize"
	StageFormat    = "format"
)

// Status of one stage for one article.
type Status string

const (
	StatusOK       Status = "ok"       // stage ran and improved the text
	StatusSkipped  Status = "skipped"  // disabled or collaborator absent
	StatusFallback Status = "fallback" // collaborator error; prior text substituted
	StatusFailed   Status = "failed"   // collaborator error, no substitute
)

// BodyMaxRunes caps the body carried into a publication post.
const BodyMaxRunes = 1000

// EnrichedRecord is the publication-ready representation of an article.
// Immutable once built.
type EnrichedRecord struct {
	Title            string
	Summary          string
	Body             string
	SourceURL        string
	SourceName       string
	OriginalLanguage string
	ImagePath        string
	Stages           map[string]Status
}

// Translator converts text into the publication language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (string, error)
}

// Summarizer condenses text into a short synopsis.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Sink accepts one finished record. Publish is called once per record,
// with retries only on transient failure.
type Sink interface {
	Publish(ctx context.Context, rec EnrichedRecord) error
}

// ErrNotRelevant rejects an article whose classification verdict was
// unambiguously negative.
var ErrNotRelevant = errors.New("article not relevant")

// Options toggles stages and tunes retry/pacing behavior.
type Options struct {
	ClassifyEnabled  bool
	TranslateEnabled bool
	SummarizeEnabled bool
	FormatEnabled    bool

	Retry         retry.Config
	PostInterval  time.Duration // minimum delay between sink publishes
	TargetLang    string
}

// Orchestrator runs articles through the stages one at a time.
type Orchestrator struct {
	classifier relevance.External
	translator Translator
	summarizer Summarizer
	sink       Sink
	seen       dedup.Store
	pacer      *ratelimit.Pacer
	opts       Options
	log        *slog.Logger
}

// New wires the orchestrator. classifier, translator and summarizer may be
// nil: the corresponding stage then degrades to a deterministic
// pass-through. sink and seen must be set.
func New(classifier relevance.External, translator Translator, summarizer Summarizer,
	sink Sink, seen dedup.Store, pacer *ratelimit.Pacer, opts Options) *Orchestrator {
	if opts.TargetLang == "" {
		opts.TargetLang = "uk"
	}
	return &Orchestrator{
		classifier: classifier,
		translator: translator,
		summarizer: summarizer,
		sink:       sink,
		seen:       seen,
		pacer:      pacer,
		opts:       opts,
		log:        slog.With("component", "pipeline"),
	}
}

// Enrich runs the four stages over one article and builds its record.
// Returns ErrNotRelevant when the classify stage firmly rejects it.
func (o *Orchestrator) Enrich(ctx context.Context, art feed.Article) (*EnrichedRecord, error) {
	stages := map[string]Status{
		StageClassify:  StatusSkipped,
		StageTranslate: StatusSkipped,
		StageSummarize: StatusSkipped,
		StageFormat:    StatusSkipped,
	}

	title := art.Title
	text := art.FullText
	if text == "" {
		text = art.Description
	}

	// Classify. A keyword match is sufficient; the external verdict is
	// only consulted (and then authoritative) for keyword-negatives.
	if o.opts.ClassifyEnabled {
		switch {
		case art.Relevant:
			stages[StageClassify] = StatusOK
		case o.classifier == nil:
			return nil, ErrNotRelevant
		default:
			verdict, err := o.classifyExternally(ctx, art)
			if err != nil {
				// Failure isolation: an unreachable classifier must not
				// lose the article.
				o.log.Warn("classification failed, keeping article", "title", art.Title, "error", err)
				stages[StageClassify] = StatusFailed
				metrics.Global.IncrementStageFallbacks()
			} else if verdict == relevance.NotRelevant {
				return nil, ErrNotRelevant
			} else {
				stages[StageClassify] = StatusOK
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Translate title and body into the target language.
	if o.opts.TranslateEnabled && o.translator != nil {
		translatedTitle, errTitle := o.translate(ctx, title, art.Language)
		translatedText, errText := o.translate(ctx, text, art.Language)
		if errTitle == nil && errText == nil {
			title, text = translatedTitle, translatedText
			stages[StageTranslate] = StatusOK
		} else {
			o.log.Warn("translation failed, keeping original text", "title", art.Title,
				"error", errors.Join(errTitle, errText))
			stages[StageTranslate] = StatusFallback
			metrics.Global.IncrementStageFallbacks()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Summarize the best text available so far.
	summary := ""
	if o.opts.SummarizeEnabled && o.summarizer != nil {
		s, err := o.summarize(ctx, text)
		if err != nil {
			o.log.Warn("summarization failed, using sentence fallback", "title", art.Title, "error", err)
			summary = textutil.FirstSentences(text, 2)
			stages[StageSummarize] = StatusFallback
			metrics.Global.IncrementStageFallbacks()
		} else {
			summary = s
			stages[StageSummarize] = StatusOK
		}
	} else {
		// Pass through the longest available text as the summary.
		summary = text
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Format. Local stage: trims the body and enforces the record
	// invariants.
	body := text
	if o.opts.FormatEnabled {
		body = textutil.Truncate(body, BodyMaxRunes)
		summary = textutil.CleanText(summary)
		stages[StageFormat] = StatusOK
	}
	if body == "" {
		body = art.Description
	}
	if summary == "" && body == "" {
		return nil, fmt.Errorf("article %q has no usable content", art.Title)
	}

	return &EnrichedRecord{
		Title:            title,
		Summary:          summary,
		Body:             body,
		SourceURL:        art.URL,
		SourceName:       art.Source,
		OriginalLanguage: art.Language,
		Stages:           stages,
	}, nil
}

func (o *Orchestrator) classifyExternally(ctx context.Context, art feed.Article) (relevance.Verdict, error) {
	input := art.Title + "\n\n" + art.Description
	if art.FullText != "" {
		input += "\n\n" + textutil.Truncate(art.FullText, 500)
	}

	var verdict relevance.Verdict
	err := o.callExternal(ctx, "classifier", func() error {
		v, err := o.classifier.Classify(ctx, input)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	return verdict, err
}

func (o *Orchestrator) translate(ctx context.Context, text, sourceLang string) (string, error) {
	if text == "" {
		return "", nil
	}
	var out string
	err := o.callExternal(ctx, "translator", func() error {
		t, err := o.translator.Translate(ctx, text, sourceLang)
		if err != nil {
			return err
		}
		if t == "" {
			return fmt.Errorf("empty translation")
		}
		out = t
		return nil
	})
	return out, err
}

func (o *Orchestrator) summarize(ctx context.Context, text string) (string, error) {
	var out string
	err := o.callExternal(ctx, "summarizer", func() error {
		s, err := o.summarizer.Summarize(ctx, text)
		if err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("empty summary")
		}
		out = s
		return nil
	})
	return out, err
}

// callExternal applies pacing and bounded retry with increasing delay to
// one collaborator invocation.
func (o *Orchestrator) callExternal(ctx context.Context, provider string, fn func() error) error {
	return retry.WithRetry(ctx, o.opts.Retry, func() error {
		if o.pacer != nil {
			if err := o.pacer.Wait(ctx, provider); err != nil {
				return err
			}
		}
		return fn()
	})
}
