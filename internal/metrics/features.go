package metrics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Features holds basic local text features derived from an input string.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures computes and returns byte, rune, word, and line counts for the input string.
func CountFeatures(s string) Features {
	b := len(s)
	r := utf8.RuneCountInString(s)
	w := countWords(s)
	l := countLines(s)
	return Features{Bytes: b, Runes: r, Words: w, Lines: l}
}

// Prose extends Features with counts that only make sense for natural language.
type Prose struct {
	Features
	NonSpaceRunes int
	Sentences     int
	Paragraphs    int
}

var (
	sentenceBreak  = regexp.MustCompile(`[.!?]+`)
	paragraphBreak = regexp.MustCompile(`\n\n+`)
)

// CountProse computes Features plus sentence, paragraph and non-whitespace rune counts.
// Sentences split on runs of . ! ?; paragraphs split on blank lines. Empty
// segments are not counted.
func CountProse(s string) Prose {
	nonSpace := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			nonSpace++
		}
	}
	return Prose{
		Features:      CountFeatures(s),
		NonSpaceRunes: nonSpace,
		Sentences:     countSegments(sentenceBreak.Split(s, -1)),
		Paragraphs:    countSegments(paragraphBreak.Split(s, -1)),
	}
}

// countWords counts words split on Unicode whitespace.
func countWords(s string) int {
	return len(strings.Fields(s))
}

// countLines returns 0 for empty strings; otherwise 1 plus the number of '\n' runes.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}

func countSegments(parts []string) int {
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}
