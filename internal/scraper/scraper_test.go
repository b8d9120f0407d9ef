package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const bodyFiller = "Die Schweiz nimmt weitere Geflüchtete aus der Ukraine auf und verlängert den Schutzstatus bis Ende des Jahres, teilte der Bundesrat am Montag mit."

func newPageServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_ArticleSelectorWinsOverPageNoise(t *testing.T) {
	html := `<html><head><script>var x = 1;</script></head><body>
		<nav>Home News Sport</nav>
		<article>` + bodyFiller + `</article>
		<footer>Impressum Kontakt</footer>
	</body></html>`
	srv := newPageServer(t, html)

	ext := NewExtractor(5 * time.Second)
	got := ext.Extract(context.Background(), srv.URL)

	if !strings.Contains(got, "Schutzstatus") {
		t.Fatalf("article body not extracted: %q", got)
	}
	if strings.Contains(got, "Impressum") || strings.Contains(got, "var x") {
		t.Errorf("boilerplate leaked into body: %q", got)
	}
}

func TestExtract_SiteSelectorsTriedBeforeGeneric(t *testing.T) {
	html := `<html><body>
		<article>generic fallback text that is clearly long enough to pass the minimum length check for extraction</article>
		<div class="story-body">` + bodyFiller + `</div>
	</body></html>`
	srv := newPageServer(t, html)

	ext := NewExtractor(5 * time.Second)
	ext.SetSiteSelectors(map[string][]string{"127.0.0.1": {".story-body"}})
	got := ext.Extract(context.Background(), srv.URL)

	if !strings.Contains(got, "Schutzstatus") {
		t.Errorf("site selector not preferred: %q", got)
	}
	if strings.Contains(got, "generic fallback") {
		t.Errorf("generic selector used despite a site match: %q", got)
	}
}

func TestExtract_WholePageFallback(t *testing.T) {
	html := `<html><body><div>` + bodyFiller + ` ` + bodyFiller + `</div></body></html>`
	srv := newPageServer(t, html)

	ext := NewExtractor(5 * time.Second)
	if got := ext.Extract(context.Background(), srv.URL); !strings.Contains(got, "Bundesrat") {
		t.Errorf("whole-page fallback did not fire: %q", got)
	}
}

func TestExtract_TooShortIsFailure(t *testing.T) {
	srv := newPageServer(t, `<html><body><article>Kurz.</article></body></html>`)

	ext := NewExtractor(5 * time.Second)
	if got := ext.Extract(context.Background(), srv.URL); got != "" {
		t.Errorf("short body accepted: %q", got)
	}
}

func TestExtract_HTTPErrorIsEmptyNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	ext := NewExtractor(5 * time.Second)
	if got := ext.Extract(context.Background(), srv.URL); got != "" {
		t.Errorf("404 produced content: %q", got)
	}
}

func TestExtractAll_CollectsOnlySuccesses(t *testing.T) {
	good := newPageServer(t, `<html><body><article>`+bodyFiller+`</article></body></html>`)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	ext := NewExtractor(5 * time.Second)
	got := ext.ExtractAll(context.Background(), []string{good.URL, bad.URL}, 2)

	if _, ok := got[good.URL]; !ok {
		t.Errorf("successful URL missing from results")
	}
	if _, ok := got[bad.URL]; ok {
		t.Errorf("failed URL present in results")
	}
}
