package metrics_test

import (
	"testing"

	"github.com/petasbytes/toolchat/internal/metrics"
)

func TestCountFeatures_Table(t *testing.T) {
	type exp struct {
		bytes int
		runes int
		words int
		lines int
	}
	cases := []struct {
		name string
		in   string
		exp  exp
	}{
		{
			name: "Empty",
			in:   "",
			exp:  exp{bytes: 0, runes: 0, words: 0, lines: 0},
		},
		{
			name: "ASCII",
			in:   "hello world",
			exp:  exp{bytes: 11, runes: 11, words: 2, lines: 1},
		},
		{
			name: "Multibyte",
			in:   "h\u00e9ll\u00f6 \u4e16\u754c", // bytes=14, runes=8, words=2, lines=1
			exp:  exp{bytes: 14, runes: 8, words: 2, lines: 1},
		},
		{
			name: "Multiline_NoTrailing",
			in:   "a\nb\ncd", // bytes=6, runes=6, words=3, lines=3
			exp:  exp{bytes: 6, runes: 6, words: 3, lines: 3},
		},
		{
			name: "Multiline_Trailing",
			in:   "a\nb\n", // bytes=4, runes=4, words=2, lines=3
			exp:  exp{bytes: 4, runes: 4, words: 2, lines: 3},
		},
		{
			name: "Whitespace_Tabs_Spaces",
			in:   "  foo\tbar   baz  ", // bytes=17, runes=17, words=3, lines=1
			exp:  exp{bytes: 17, runes: 17, words: 3, lines: 1},
		},
		{
			name: "NBSP",
			in:   "foo\u00A0bar", // bytes=8, runes=7, words=2, lines=1
			exp:  exp{bytes: 8, runes: 7, words: 2, lines: 1},
		},
		{
			name: "OnlyWhitespace",
			in:   " \t\n", // bytes=3, runes=3, words=0, lines=2
			exp:  exp{bytes: 3, runes: 3, words: 0, lines: 2},
		},
		{
			name: "CRLF",
			in:   "a\r\nb\r\nc", // bytes=7, runes=7, words=3, lines=3
			exp:  exp{bytes: 7, runes: 7, words: 3, lines: 3},
		},
		{
			name: "EmSpace",
			in:   "foo\u2003bar", // bytes=9, runes=7, words=2, lines=1
			exp:  exp{bytes: 9, runes: 7, words: 2, lines: 1},
		},
		{
			name: "ZeroWidthSpace_NoSplit",
			in:   "foo\u200Bbar", // bytes=9, runes=7, words=1, lines=1
			exp:  exp{bytes: 9, runes: 7, words: 1, lines: 1},
		},
		{
			name: "Emoji_Astral",
			in:   "\U0001F44D\U0001F44D", // bytes=8, runes=2, words=1, lines=1
			exp:  exp{bytes: 8, runes: 2, words: 1, lines: 1},
		},
		{
			name: "Combining_Marks",
			in:   "e\u0301", // "e" + combining acute accent -> 1 glyph, 2 runes, 3 bytes
			exp:  exp{bytes: 3, runes: 2, words: 1, lines: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := metrics.CountFeatures(tc.in)
			if f.Bytes != tc.exp.bytes || f.Runes != tc.exp.runes || f.Words != tc.exp.words || f.Lines != tc.exp.lines {
				t.Fatalf("%s: got %+v, want bytes=%d runes=%d words=%d lines=%d", tc.name, f, tc.exp.bytes, tc.exp.runes, tc.exp.words, tc.exp.lines)
			}
		})
	}
}

func TestCountProse_Table(t *testing.T) {
	cases := []struct {
		name       string
		in         string
		nonSpace   int
		sentences  int
		paragraphs int
	}{
		{name: "Empty", in: "", nonSpace: 0, sentences: 0, paragraphs: 0},
		{name: "OneSentence", in: "Hello there.", nonSpace: 11, sentences: 1, paragraphs: 1},
		{name: "MixedTerminators", in: "Really?! Yes. Go", nonSpace: 14, sentences: 3, paragraphs: 1},
		{name: "Ellipsis", in: "Wait... what", nonSpace: 11, sentences: 2, paragraphs: 1},
		{name: "TwoParagraphs", in: "One.\n\nTwo.", nonSpace: 8, sentences: 2, paragraphs: 2},
		{name: "SingleNewlineIsSameParagraph", in: "a\nb", nonSpace: 2, sentences: 1, paragraphs: 1},
		{name: "OnlyPunctuation", in: "?!.", nonSpace: 3, sentences: 0, paragraphs: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := metrics.CountProse(tc.in)
			if p.NonSpaceRunes != tc.nonSpace || p.Sentences != tc.sentences || p.Paragraphs != tc.paragraphs {
				t.Fatalf("got %+v, want nonSpace=%d sentences=%d paragraphs=%d", p, tc.nonSpace, tc.sentences, tc.paragraphs)
			}
			if p.Features != metrics.CountFeatures(tc.in) {
				t.Fatalf("embedded features differ from CountFeatures")
			}
		})
	}
}
