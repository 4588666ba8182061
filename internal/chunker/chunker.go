// Package chunker splits document text into bounded, overlapping
// segments, the unit of storage and retrieval. Splitting is fully
// deterministic: the same text and parameters always produce the same
// segments, so re-ingesting a document recomputes identical chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Defaults applied when the service config leaves chunk parameters unset.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// overlapSep joins the carried-over tail of the previous segment to the
// next segment's own text, marking the boundary for downstream readers.
const overlapSep = " ... "

// Chunker splits normalized text into segments of at most chunkSize
// runes, then prefixes every segment after the first with the last
// overlap runes of its predecessor. The injected prefix means final
// segment length can exceed chunkSize by overlap plus the separator;
// that is intentional, the budget applies to the pre-overlap segment.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New validates the parameters and returns a Chunker. All lengths count
// runes, not bytes, so splits never land inside a UTF-8 sequence.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be smaller than chunk size %d, got %d", chunkSize, overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits text into ordered segments. Empty or whitespace-only
// input yields no segments, not an error.
func (c *Chunker) Chunk(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	return c.injectOverlap(c.packParagraphs(text))
}

// Normalize unifies line endings, collapses runs of blank lines down to
// a single blank line, and trims surrounding whitespace.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

// packParagraphs greedily packs blank-line-separated paragraphs into
// segments, keeping each segment within the chunk size. Paragraphs too
// large to ever fit are handed to the sentence splitter.
func (c *Chunker) packParagraphs(text string) []string {
	var segments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)

		if paraLen > c.chunkSize {
			flush()
			segments = append(segments, c.packSentences(para)...)
			continue
		}

		sepLen := 0
		if currentLen > 0 {
			sepLen = 2 // "\n\n"
		}
		if currentLen+sepLen+paraLen > c.chunkSize {
			flush()
			sepLen = 0
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += sepLen
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	return segments
}

// packSentences splits an oversized paragraph at sentence boundaries and
// greedily packs the sentences. A single sentence longer than the chunk
// size is hard-split at fixed rune offsets.
func (c *Chunker) packSentences(paragraph string) []string {
	var segments []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, sent := range splitSentences(paragraph) {
		sentLen := utf8.RuneCountInString(sent)

		if sentLen > c.chunkSize {
			flush()
			segments = append(segments, hardSplit(sent, c.chunkSize)...)
			continue
		}

		sepLen := 0
		if currentLen > 0 {
			sepLen = 1 // " "
		}
		if currentLen+sepLen+sentLen > c.chunkSize {
			flush()
			sepLen = 0
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen += sepLen
		}
		current.WriteString(sent)
		currentLen += sentLen
	}
	flush()

	return segments
}

// splitSentences cuts at '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// hardSplit cuts a single overlong sentence at offsets of exactly size
// runes; only the final fragment may be shorter.
func hardSplit(text string, size int) []string {
	runes := []rune(text)
	parts := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// injectOverlap prefixes every segment after the first with the tail of
// the previous pre-overlap segment, so boundary context survives the
// split.
func (c *Chunker) injectOverlap(segments []string) []string {
	if len(segments) <= 1 || c.overlap == 0 {
		return segments
	}
	out := make([]string, len(segments))
	out[0] = segments[0]
	for i := 1; i < len(segments); i++ {
		out[i] = lastRunes(segments[i-1], c.overlap) + overlapSep + segments[i]
	}
	return out
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
