package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/deusflow/chnews/internal/dedup"
	"github.com/deusflow/chnews/internal/feed"
	"github.com/deusflow/chnews/internal/relevance"
)

type fakeClassifier struct {
	verdict relevance.Verdict
	err     error
	calls   int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (relevance.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeTranslator struct {
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "uk:" + text, nil
}

type fakeSummarizer struct {
	err error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "summary of: " + text[:min(20, len(text))], nil
}

type fakeSink struct {
	failures  int // fail this many leading calls
	published []EnrichedRecord
}

func (f *fakeSink) Publish(ctx context.Context, rec EnrichedRecord) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("sink unavailable")
	}
	f.published = append(f.published, rec)
	return nil
}

func newSeenStore(t *testing.T) *dedup.FileStore {
	t.Helper()
	return dedup.NewFileStore(filepath.Join(t.TempDir(), "seen.json"), 100)
}

func allOn() Options {
	return Options{
		ClassifyEnabled:  true,
		TranslateEnabled: true,
		SummarizeEnabled: true,
		FormatEnabled:    true,
	}
}

func testArticle() feed.Article {
	return feed.Article{
		Title:       "Aid for Ukraine extended",
		Description: "The federal council extended the protection status.",
		URL:         "https://example.ch/article-1",
		Source:      "Swissinfo",
		Language:    "en",
		FullText:    strings.Repeat("The programme continues through next year with additional funding. ", 30),
		Relevant:    true,
	}
}

func TestEnrich_AllStagesSucceed(t *testing.T) {
	tr := &fakeTranslator{}
	orch := New(&fakeClassifier{verdict: relevance.Relevant}, tr, &fakeSummarizer{}, nil, newSeenStore(t), nil, allOn())

	rec, err := orch.Enrich(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	if !strings.HasPrefix(rec.Title, "uk:") {
		t.Errorf("title not translated: %q", rec.Title)
	}
	if utf8.RuneCountInString(rec.Body) > BodyMaxRunes {
		t.Errorf("body exceeds cap: %d runes", utf8.RuneCountInString(rec.Body))
	}
	for _, stage := range []string{StageClassify, StageTranslate, StageSummarize, StageFormat} {
		if rec.Stages[stage] != StatusOK {
			t.Errorf("stage %s = %q, want ok", stage, rec.Stages[stage])
		}
	}
	if rec.SourceURL != "https://example.ch/article-1" || rec.OriginalLanguage != "en" {
		t.Errorf("provenance lost: %+v", rec)
	}
}

func TestEnrich_KeywordMatchSkipsExternalClassifier(t *testing.T) {
	cl := &fakeClassifier{verdict: relevance.NotRelevant}
	orch := New(cl, nil, nil, nil, newSeenStore(t), nil, Options{ClassifyEnabled: true, FormatEnabled: true})

	art := testArticle() // Relevant already set by the keyword stage
	if _, err := orch.Enrich(context.Background(), art); err != nil {
		t.Fatalf("keyword-positive article rejected: %v", err)
	}
	if cl.calls != 0 {
		t.Errorf("external classifier consulted despite keyword match")
	}
}

func TestEnrich_ExternalVerdictAuthoritativeForKeywordNegatives(t *testing.T) {
	art := testArticle()
	art.Relevant = false

	orch := New(&fakeClassifier{verdict: relevance.NotRelevant}, nil, nil, nil, newSeenStore(t), nil, allOn())
	if _, err := orch.Enrich(context.Background(), art); !errors.Is(err, ErrNotRelevant) {
		t.Errorf("negative verdict not honored, err=%v", err)
	}

	orch = New(&fakeClassifier{verdict: relevance.Relevant}, nil, nil, nil, newSeenStore(t), nil, Options{ClassifyEnabled: true, FormatEnabled: true})
	if _, err := orch.Enrich(context.Background(), art); err != nil {
		t.Errorf("positive verdict did not rescue the article: %v", err)
	}
}

func TestEnrich_ClassifierFailureKeepsArticle(t *testing.T) {
	art := testArticle()
	art.Relevant = false

	orch := New(&fakeClassifier{err: errors.New("quota exceeded")}, nil, nil, nil, newSeenStore(t), nil, Options{ClassifyEnabled: true, FormatEnabled: true})
	rec, err := orch.Enrich(context.Background(), art)
	if err != nil {
		t.Fatalf("classifier outage lost the article: %v", err)
	}
	if rec.Stages[StageClassify] != StatusFailed {
		t.Errorf("classify stage = %q, want failed", rec.Stages[StageClassify])
	}
}

func TestEnrich_NoClassifierRejectsKeywordNegatives(t *testing.T) {
	art := testArticle()
	art.Relevant = false

	orch := New(nil, nil, nil, nil, newSeenStore(t), nil, Options{ClassifyEnabled: true})
	if _, err := orch.Enrich(context.Background(), art); !errors.Is(err, ErrNotRelevant) {
		t.Errorf("want ErrNotRelevant, got %v", err)
	}
}

func TestEnrich_TranslationFailureKeepsOriginal(t *testing.T) {
	orch := New(nil, &fakeTranslator{err: errors.New("both providers down")}, nil, nil, newSeenStore(t), nil,
		Options{TranslateEnabled: true, FormatEnabled: true})

	art := testArticle()
	rec, err := orch.Enrich(context.Background(), art)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if rec.Title != art.Title {
		t.Errorf("original title not kept: %q", rec.Title)
	}
	if rec.Stages[StageTranslate] != StatusFallback {
		t.Errorf("translate stage = %q, want fallback", rec.Stages[StageTranslate])
	}
	if !strings.Contains(rec.Body, "programme continues") {
		t.Errorf("original body not kept: %q", rec.Body)
	}
}

func TestEnrich_SummarizerFailureFallsBackToSentences(t *testing.T) {
	orch := New(nil, nil, &fakeSummarizer{err: errors.New("model overloaded")}, nil, newSeenStore(t), nil,
		Options{SummarizeEnabled: true, FormatEnabled: true})

	rec, err := orch.Enrich(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if rec.Summary == "" {
		t.Errorf("no fallback summary produced")
	}
	if rec.Stages[StageSummarize] != StatusFallback {
		t.Errorf("summarize stage = %q, want fallback", rec.Stages[StageSummarize])
	}
}

func TestEnrich_SummarizeDisabledPassesTextThrough(t *testing.T) {
	orch := New(nil, nil, nil, nil, newSeenStore(t), nil, Options{})

	art := testArticle()
	rec, err := orch.Enrich(context.Background(), art)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if rec.Summary != art.FullText {
		t.Errorf("summary is not the passthrough text")
	}
	if rec.Stages[StageSummarize] != StatusSkipped {
		t.Errorf("summarize stage = %q, want skipped", rec.Stages[StageSummarize])
	}
}

func TestEnrich_EmptyBodyFallsBackToDescription(t *testing.T) {
	art := testArticle()
	art.FullText = "" // extraction failed upstream

	orch := New(nil, nil, nil, nil, newSeenStore(t), nil, Options{FormatEnabled: true})
	rec, err := orch.Enrich(context.Background(), art)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if rec.Body != art.Description {
		t.Errorf("body did not fall back to the description: %q", rec.Body)
	}
}

func TestEnrich_NoContentAtAllFails(t *testing.T) {
	art := feed.Article{Title: "Bare", URL: "https://example.ch/bare", Relevant: true}
	orch := New(nil, nil, nil, nil, newSeenStore(t), nil, Options{})
	if _, err := orch.Enrich(context.Background(), art); err == nil {
		t.Errorf("contentless article enriched")
	}
}

func TestRun_PublishThenMarkSeen(t *testing.T) {
	sink := &fakeSink{}
	seen := newSeenStore(t)
	orch := New(nil, nil, nil, sink, seen, nil, Options{FormatEnabled: true})

	report := orch.Run(context.Background(), []feed.Article{testArticle()})
	if report.Published != 1 || len(sink.published) != 1 {
		t.Fatalf("published=%d sink=%d", report.Published, len(sink.published))
	}
	if !seen.Has(dedup.Fingerprint("https://example.ch/article-1")) {
		t.Errorf("published article not marked seen")
	}

	// The same batch again must be all duplicates.
	report = orch.Run(context.Background(), []feed.Article{testArticle()})
	if report.Duplicates != 1 || report.Published != 0 {
		t.Errorf("rerun not deduplicated: %+v", report)
	}
	if len(sink.published) != 1 {
		t.Errorf("article published twice")
	}
}

func TestRun_FailedPublishLeavesArticleUnmarked(t *testing.T) {
	sink := &fakeSink{failures: 100}
	seen := newSeenStore(t)
	orch := New(nil, nil, nil, sink, seen, nil, Options{FormatEnabled: true})

	report := orch.Run(context.Background(), []feed.Article{testArticle()})
	if report.Published != 0 {
		t.Fatalf("failed publish counted: %+v", report)
	}
	if len(report.Errors) == 0 {
		t.Errorf("publish failure not reported")
	}
	if seen.Has(dedup.Fingerprint("https://example.ch/article-1")) {
		t.Errorf("unpublished article marked seen")
	}

	// Next run retries the same article and succeeds.
	sink.failures = 0
	report = orch.Run(context.Background(), []feed.Article{testArticle()})
	if report.Published != 1 {
		t.Errorf("retry run did not publish: %+v", report)
	}
}

func TestRun_RejectedArticlesCounted(t *testing.T) {
	art := testArticle()
	art.Relevant = false

	orch := New(nil, nil, nil, &fakeSink{}, newSeenStore(t), nil, Options{ClassifyEnabled: true})
	report := orch.Run(context.Background(), []feed.Article{art})
	if report.Rejected != 1 || report.Processed != 0 {
		t.Errorf("rejection not counted: %+v", report)
	}
}

func TestRun_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := New(nil, nil, nil, &fakeSink{}, newSeenStore(t), nil, Options{})
	report := orch.Run(ctx, []feed.Article{testArticle(), testArticle()})
	if report.Published != 0 {
		t.Errorf("cancelled run published articles")
	}
	if len(report.Errors) == 0 {
		t.Errorf("cancellation not surfaced in the report")
	}
}

func TestRun_MixedBatch(t *testing.T) {
	dup := testArticle()
	dup.URL = "https://example.ch/dup"

	seen := newSeenStore(t)
	if err := seen.MarkSeen(dedup.Fingerprint(dup.URL)); err != nil {
		t.Fatal(err)
	}

	fresh := testArticle()
	rejected := testArticle()
	rejected.URL = "https://example.ch/other"
	rejected.Relevant = false

	sink := &fakeSink{}
	orch := New(nil, nil, nil, sink, seen, nil, Options{ClassifyEnabled: true, FormatEnabled: true})
	report := orch.Run(context.Background(), []feed.Article{dup, fresh, rejected})

	if report.Duplicates != 1 || report.Published != 1 || report.Rejected != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := fmt.Sprintf("%d", len(sink.published)); got != "1" {
		t.Errorf("sink received %s records", got)
	}
}
