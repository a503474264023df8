package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+["'\x{201D}\x{2019})\]]*\s+`)
	blankLine   = regexp.MustCompile(`\n[ \t]*\n`)
)

// openers may precede the first letter of a sentence.
const openers = "\"'(['\u201C\u2018"

// splitSentences returns trimmed sentences in order. A sentence ends at a
// terminator followed by whitespace and an uppercase letter, optionally behind
// an opener, so decimals, URLs and lowercase abbreviations such as "e.g." stay
// inside their sentence. Text after the last boundary is the final sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		next, _ := utf8.DecodeRuneInString(strings.TrimLeft(text[loc[1]:], openers))
		if !unicode.IsUpper(next) {
			continue
		}
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// splitParagraphs splits on blank lines.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
