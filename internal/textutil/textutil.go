// Package textutil normalizes feed and article text before any matching or
// enrichment happens. Every other component funnels raw text through here.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reTags    = regexp.MustCompile(`<[^>]*>`)
	reEntity  = regexp.MustCompile(`&(#\d+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)
	entityMap = map[string]string{
		"&nbsp;": " ", "&amp;": "&", "&lt;": "<", "&gt;": ">",
		"&quot;": `"`, "&#39;": "'", "&apos;": "'", "&hellip;": "…",
		"&mdash;": "—", "&ndash;": "–", "&laquo;": "«", "&raquo;": "»",
	}
)

// CleanText strips markup tags, decodes common entities and collapses all
// whitespace runs into single spaces.
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "<br>", " ")
	s = strings.ReplaceAll(s, "<br/>", " ")
	s = strings.ReplaceAll(s, "<br />", " ")
	s = reTags.ReplaceAllString(s, " ")

	s = reEntity.ReplaceAllStringFunc(s, func(e string) string {
		if r, ok := entityMap[e]; ok {
			return r
		}
		return " "
	})

	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes, preferring to end on a sentence
// boundary when one exists reasonably close to the cut point.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	trimmed := string(runes[:max])
	if idx := strings.LastIndex(trimmed, ". "); idx > max/3 {
		return trimmed[:idx+1]
	}
	return strings.TrimSpace(trimmed) + "..."
}

// FirstSentences returns up to n sentences of s, skipping fragments shorter
// than 25 characters. Used as the summary fallback when no summarizer ran.
func FirstSentences(s string, n int) string {
	c := strings.TrimSpace(s)
	if c == "" {
		return ""
	}

	sentences := strings.Split(c, ".")
	var picked []string
	for _, sent := range sentences {
		sent = strings.TrimSpace(sent)
		if len(sent) < 25 {
			continue
		}
		picked = append(picked, sent)
		if len(picked) >= n {
			break
		}
	}
	if len(picked) == 0 {
		return Truncate(c, 160)
	}
	return strings.Join(picked, ". ") + "."
}
