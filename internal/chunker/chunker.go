// Package chunker splits enriched text into ordered, overlapping chunks.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"paperpipe/internal/domain"
)

// Chunking granularities.
const (
	MethodSentences  = "sentences"
	MethodWords      = "words"
	MethodParagraphs = "paragraphs"
	MethodSections   = "sections"
	MethodCharacters = "characters"
)

// Chunker packs text units greedily into chunks of at most size runes. The
// next chunk starts with the trailing units of the previous one that fit in
// overlap runes.
type Chunker struct {
	method  string
	size    int
	overlap int
}

var _ domain.Chunker = (*Chunker)(nil)

// New validates the settings and returns a Chunker.
func New(method string, size, overlap int) (*Chunker, error) {
	if method == "" {
		method = MethodSentences
	}
	switch method {
	case MethodSentences, MethodWords, MethodParagraphs, MethodSections, MethodCharacters:
	default:
		return nil, fmt.Errorf("unknown chunk method %q", method)
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{method: method, size: size, overlap: overlap}, nil
}

// Chunk splits document.Content. Blank content yields no chunks.
func (c *Chunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts, err := c.Split(document.Content)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(i),
			Text:       text,
			Index:      i,
		})
	}
	return chunks, nil
}

// Split returns the chunk texts in order.
func (c *Chunker) Split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	switch c.method {
	case MethodCharacters:
		return windows(text, c.size, c.overlap), nil
	case MethodWords:
		return pack(c.fit(strings.Fields(text), false), " ", c.size, c.overlap), nil
	case MethodSentences:
		return pack(c.fit(splitSentences(text), false), " ", c.size, c.overlap), nil
	case MethodParagraphs:
		return pack(c.fit(splitParagraphs(text), true), "\n\n", c.size, c.overlap), nil
	case MethodSections:
		sections, err := splitSections([]byte(text))
		if err != nil {
			return nil, err
		}
		return pack(c.fit(sections, true), "\n\n", c.size, c.overlap), nil
	}
	return nil, errors.New("unreachable chunk method")
}

// fit breaks units longer than size. With viaSentences the unit is re-packed
// from its sentences; anything still too long is cut into rune windows.
func (c *Chunker) fit(units []string, viaSentences bool) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		if runeLen(u) <= c.size {
			out = append(out, u)
			continue
		}
		if viaSentences {
			out = append(out, pack(c.fit(splitSentences(u), false), " ", c.size, c.overlap)...)
			continue
		}
		out = append(out, windows(u, c.size, c.overlap)...)
	}
	return out
}

func pack(units []string, sep string, size, overlap int) []string {
	var (
		chunks []string
		cur    []string
		fresh  int
	)
	for _, u := range units {
		if len(cur) > 0 && joinedLen(append(cur[:len(cur):len(cur)], u), sep) > size {
			if fresh > 0 {
				chunks = append(chunks, strings.Join(cur, sep))
			}
			cur = tail(cur, sep, overlap)
			fresh = 0
			for len(cur) > 0 && joinedLen(append(cur[:len(cur):len(cur)], u), sep) > size {
				cur = cur[1:]
			}
		}
		cur = append(cur, u)
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, sep))
	}
	return chunks
}

// tail returns the longest suffix of units whose joined length is at most
// limit, as a fresh slice.
func tail(units []string, sep string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	start := len(units)
	n := 0
	for i := len(units) - 1; i >= 0; i-- {
		add := runeLen(units[i])
		if i < len(units)-1 {
			add += runeLen(sep)
		}
		if n+add > limit {
			break
		}
		n += add
		start = i
	}
	return append([]string(nil), units[start:]...)
}

// windows cuts text into rune windows of size, stepping size-overlap.
func windows(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			out = append(out, w)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func joinedLen(units []string, sep string) int {
	if len(units) == 0 {
		return 0
	}
	n := runeLen(sep) * (len(units) - 1)
	for _, u := range units {
		n += runeLen(u)
	}
	return n
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
