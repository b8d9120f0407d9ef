// Package scraper extracts the main body text of an article page. Site
// specific selectors are tried first, then a generic cascade, then the
// whole page; the first non-empty result wins.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/chnews/internal/textutil"
)

// MinBodyRunes is the minimum viable extraction length. Anything shorter
// is treated as a failed extraction, not as content.
const MinBodyRunes = 100

// Elements removed before any text extraction.
var strippedElements = "script, style, nav, header, footer, aside, form, noscript"

// Per-site content selectors, keyed by a substring of the article URL.
var defaultSiteSelectors = map[string][]string{
	"swissinfo.ch": {
		".article__content",
		".article-content",
		"[data-testid=\"article-content\"]",
		".content-main",
	},
	"letemps.ch": {
		".article-content",
		".article__content",
		".content-article",
		".article-body",
	},
	"20min.ch": {
		".article-content",
		".ArticleDetail_content",
		".content",
	},
	"nzz.ch": {
		".articlecomponent",
		".article__body",
		"article .regwalled",
	},
}

// Generic selectors shared across sites, in priority order.
var genericSelectors = []string{
	"article",
	".article",
	".post-content",
	".entry-content",
	".content",
	".main-content",
	"main",
	".article-body",
}

// Extractor fetches article pages and runs the selector cascade.
type Extractor struct {
	client        *http.Client
	siteSelectors map[string][]string
	log           *slog.Logger
}

// NewExtractor builds an extractor with the default site selector map and
// a bounded request timeout.
func NewExtractor(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Extractor{
		client:        &http.Client{Timeout: timeout},
		siteSelectors: defaultSiteSelectors,
		log:           slog.With("component", "scraper"),
	}
}

// SetSiteSelectors replaces the site selector map. Used by config and tests.
func (e *Extractor) SetSiteSelectors(m map[string][]string) {
	if m != nil {
		e.siteSelectors = m
	}
}

// Extract returns the cleaned main body text of url, or "" when nothing
// usable could be extracted. All failures are non-fatal: the caller falls
// back to the feed description.
func (e *Extractor) Extract(ctx context.Context, url string) string {
	body, err := e.extract(ctx, url)
	if err != nil {
		e.log.Warn("extraction failed", "url", url, "error", err)
		return ""
	}
	return body
}

func (e *Extractor) extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; chnews/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(strippedElements).Remove()

	content := e.selectContent(doc, url)
	content = textutil.CleanText(content)

	if utf8.RuneCountInString(content) < MinBodyRunes {
		return "", fmt.Errorf("body too short (%d runes)", utf8.RuneCountInString(content))
	}
	return content, nil
}

// selectContent runs the cascade: site selectors, generic selectors, then
// the whole page.
func (e *Extractor) selectContent(doc *goquery.Document, url string) string {
	if selectors, ok := e.siteFor(url); ok {
		if text := firstMatch(doc, selectors); text != "" {
			return text
		}
	}
	if text := firstMatch(doc, genericSelectors); text != "" {
		return text
	}
	return doc.Text()
}

func (e *Extractor) siteFor(url string) ([]string, bool) {
	for key, selectors := range e.siteSelectors {
		if strings.Contains(url, key) {
			return selectors, true
		}
	}
	return nil, false
}

func firstMatch(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// ExtractAll fetches bodies for the given URLs with bounded concurrency
// and returns the non-empty results keyed by URL.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string, concurrency int) map[string]string {
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	result := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, url := range urls {
		url := url
		g.Go(func() error {
			if body := e.Extract(gctx, url); body != "" {
				mu.Lock()
				result[url] = body
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return result
}
