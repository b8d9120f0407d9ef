// Package lang guesses the language of short news text. The sources publish
// in German, French, Italian and English; detection only needs to be good
// enough to choose a keyword set and a translation hint.
package lang

import (
	"strings"
)

const (
	German    = "de"
	French    = "fr"
	Italian   = "it"
	English   = "en"
	Ukrainian = "uk"
	Unknown   = "unknown"
)

// Distinctive letters per alphabet. Cyrillic is checked before Latin
// stopwords because a few Cyrillic characters are decisive on their own.
const (
	ukrainianChars = "іїєґІЇЄҐ"
	cyrillicChars  = "абвгдежзиклмнопрстуфхцчшщьюяАБВГДЕЖЗИКЛМНОПРСТУФХЦЧШЩ"
	germanChars    = "äöüßÄÖÜ"
	frenchChars    = "àâçèéêëîïôùûœÀÂÇÈÉÊËÎÏÔ"
)

var stopwords = map[string][]string{
	German:  {" der ", " die ", " das ", " und ", " nicht ", " eine ", " ist ", " mit ", " für ", " auf ", " sich ", " wird "},
	French:  {" le ", " la ", " les ", " des ", " une ", " est ", " dans ", " pour ", " avec ", " sur ", " qui ", " pas "},
	Italian: {" il ", " la ", " gli ", " che ", " di ", " una ", " per ", " con ", " sono ", " della ", " nel "},
	English: {" the ", " and ", " that ", " with ", " for ", " this ", " from ", " have ", " are ", " was ", " not "},
}

// Detect returns the ISO code of the dominant language of text, or Unknown.
// Texts shorter than 10 characters are never classified.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return Unknown
	}

	if countRunes(text, ukrainianChars) > 2 {
		return Ukrainian
	}
	if countRunes(text, cyrillicChars) > 5 {
		// Cyrillic but not distinctly Ukrainian
		return Unknown
	}

	lower := " " + strings.ToLower(text) + " "

	scores := map[string]int{}
	for code, words := range stopwords {
		for _, w := range words {
			scores[code] += strings.Count(lower, w)
		}
	}
	scores[German] += countRunes(text, germanChars)
	scores[French] += countRunes(text, frenchChars)

	best, bestScore := Unknown, 0
	for code, score := range scores {
		if score > bestScore {
			best, bestScore = code, score
		}
	}
	if bestScore < 2 {
		return Unknown
	}
	return best
}

func countRunes(s, set string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(set, r) {
			n++
		}
	}
	return n
}
