// Package relevance decides whether an article concerns Ukraine or
// Ukrainians. A deterministic multilingual keyword stage runs first; an
// optional external classifier can overturn a negative keyword result.
package relevance

import (
	"context"
	"regexp"
	"strings"

	"github.com/deusflow/chnews/internal/lang"
)

// Verdict is the outcome of an external classification call.
type Verdict int

const (
	NotRelevant Verdict = iota
	Relevant
)

// External is an optional probabilistic classifier consulted when the
// keyword stage does not match. Its verdict is authoritative.
type External interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Keyword sets per source language. Terms with spaces are matched as
// phrases, tokens of three letters or fewer on word boundaries, the rest
// as plain substrings.
var keywordSets = map[string][]string{
	lang.English: {
		"ukraine", "ukrainian", "ukrainians", "kyiv", "kiev",
		"zelensky", "zelenskyy", "zelenskiy", "donbas", "kharkiv", "odesa",
		"status s", "protection status",
	},
	lang.German: {
		"ukraine", "ukrainer", "ukrainerin", "ukrainisch", "ukrainische",
		"kiew", "selenskyj", "selenski", "charkiw",
		"schutzstatus s", "status s",
	},
	lang.French: {
		"ukraine", "ukrainien", "ukrainiens", "ukrainienne", "kiev", "kyiv",
		"zelensky", "réfugiés ukrainiens",
		"statut s", "permis s",
	},
	lang.Italian: {
		"ucraina", "ucraino", "ucraini", "ucraine", "kiev", "zelensky",
		"statuto s",
	},
	lang.Ukrainian: {
		"україна", "україни", "українці", "українців", "київ",
		"зеленський", "біженці",
	},
}

// IsKeywordMatch reports whether text matches the keyword set of language.
// Unknown or unmapped languages fall back to the union of all sets rather
// than rejecting outright.
func IsKeywordMatch(text, language string) bool {
	keywords, ok := keywordSets[language]
	if !ok {
		for _, set := range keywordSets {
			if containsAny(text, set) {
				return true
			}
		}
		return false
	}
	return containsAny(text, keywords)
}

func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		// Phrases keep plain substring semantics.
		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		// Short tokens need word boundaries so "s" or "eu" don't fire
		// inside unrelated words.
		if len(k) <= 3 {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			if re.MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
