package translate

import (
	"testing"
	"time"
)

func TestParseGoogleResponse(t *testing.T) {
	body := []byte(`[[["Привіт, ","Hello, ",null,null,10],["світе","world",null,null,10]],null,"en"]`)
	got, err := parseGoogleResponse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != "Привіт, світе" {
		t.Errorf("got %q", got)
	}
}

func TestParseGoogleResponse_Malformed(t *testing.T) {
	for _, body := range []string{``, `{}`, `[]`, `"just a string"`} {
		if _, err := parseGoogleResponse([]byte(body)); err == nil {
			t.Errorf("parseGoogleResponse(%q) did not fail", body)
		}
	}
}

func TestCacheRoundTrip(t *testing.T) {
	l := NewLayered("")

	key := cacheKey("Guten Tag", "de")
	if _, ok := l.cached(key); ok {
		t.Fatalf("empty cache returned a hit")
	}

	l.store(key, "Доброго дня")
	got, ok := l.cached(key)
	if !ok || got != "Доброго дня" {
		t.Errorf("cache miss after store: %q ok=%v", got, ok)
	}

	// Same text in a different source language is a different entry.
	if _, ok := l.cached(cacheKey("Guten Tag", "fr")); ok {
		t.Errorf("cache key ignores the source language")
	}
}

func TestCacheExpiry(t *testing.T) {
	l := NewLayered("")
	l.ttl = -time.Second // already expired on store

	key := cacheKey("text", "en")
	l.store(key, "текст")
	if _, ok := l.cached(key); ok {
		t.Errorf("expired entry served")
	}
}

func TestSourceLanguageName(t *testing.T) {
	if got := sourceLanguageName("fr"); got != "French" {
		t.Errorf("fr = %q", got)
	}
	if got := sourceLanguageName("xx"); got != "foreign-language" {
		t.Errorf("unknown code = %q", got)
	}
}
