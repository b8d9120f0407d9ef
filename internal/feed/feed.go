// Package feed aggregates candidate articles from the configured RSS and
// Atom sources.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/chnews/internal/dates"
	"github.com/deusflow/chnews/internal/lang"
	"github.com/deusflow/chnews/internal/relevance"
	"github.com/deusflow/chnews/internal/textutil"
)

// Article is one discovered feed item before enrichment.
type Article struct {
	Title       string
	Description string
	URL         string
	Source      string
	Published   time.Time
	Language    string
	FullText    string
	Relevant    bool
}

// Source identifies a configured feed endpoint. Lang is a default language
// hint for sources whose text defeats detection.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Lang string `yaml:"lang"`
}

type feedsConfig struct {
	Feeds []Source `yaml:"feeds"`
}

// LoadSources reads the feed list from a YAML file.
func LoadSources(path string) ([]Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feeds config: %w", err)
	}
	defer f.Close()

	var cfg feedsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse feeds config: %w", err)
	}
	return cfg.Feeds, nil
}

// Aggregator fetches sources and turns their entries into Articles.
type Aggregator struct {
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewAggregator() *Aggregator {
	p := gofeed.NewParser()
	p.UserAgent = "Mozilla/5.0 (compatible; chnews/1.0)"
	return &Aggregator{
		parser: p,
		log:    slog.With("component", "feed"),
	}
}

// Fetch retrieves one source and returns the entries that survive the
// recency window and field checks. Obviously relevant entries are flagged
// eagerly so extraction can be limited to them.
func (a *Aggregator) Fetch(ctx context.Context, src Source, window dates.Window) ([]Article, error) {
	parsed, err := a.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	var articles []Article
	for _, item := range parsed.Items {
		published, ok := dates.Resolve(item.PublishedParsed, item.Published, item.Updated)
		if !ok {
			a.log.Debug("entry without resolvable date dropped", "source", src.Name, "title", item.Title)
			continue
		}
		if !window.Contains(published) {
			continue
		}

		title := textutil.CleanText(item.Title)
		description := textutil.CleanText(item.Description)
		if title == "" || item.Link == "" {
			continue
		}

		language := lang.Detect(title + " " + description)
		if language == lang.Unknown && src.Lang != "" {
			language = src.Lang
		}

		art := Article{
			Title:       title,
			Description: description,
			URL:         item.Link,
			Source:      src.Name,
			Published:   published,
			Language:    language,
		}
		if relevance.IsKeywordMatch(title+" "+description, language) {
			art.Relevant = true
			a.log.Info("keyword match", "source", src.Name, "title", title)
		}
		articles = append(articles, art)
	}

	a.log.Info("feed fetched", "source", src.Name, "entries", len(parsed.Items), "retained", len(articles))
	return articles, nil
}

// FetchAll fetches every source with bounded concurrency. A failing source
// never aborts the others; its error is collected and the partial result
// returned.
func (a *Aggregator) FetchAll(ctx context.Context, sources []Source, window dates.Window, concurrency int) ([]Article, []error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	var (
		mu       sync.Mutex
		all      []Article
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			articles, err := a.Fetch(gctx, src, window)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn("feed fetch failed", "source", src.Name, "error", err)
				failures = append(failures, err)
				return nil
			}
			all = append(all, articles...)
			return nil
		})
	}
	g.Wait()

	return all, failures
}
