// Package text implements the sliding-window chunker and feature-property
// chunk synthesis from spec §4.3.
package text

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/georag/georag/internal/geo"
)

// Chunk is a unit of retrievable text with an optional back-reference to the
// feature it was derived from, and an optional geometry (spec §3).
type Chunk struct {
	Index       int
	Content     string
	StartOffset int // zero-based absolute byte offset into the source text
	EndOffset   int // exclusive
	Geometry    *geo.Geometry
	FeatureID   *string
}

// ChunkerOptions configures the sliding-window chunker.
type ChunkerOptions struct {
	WindowSize int // default 1000
	Overlap    int // default 200
}

// DefaultChunkerOptions matches spec §4.3's stated defaults.
func DefaultChunkerOptions() ChunkerOptions {
	return ChunkerOptions{WindowSize: 1000, Overlap: 200}
}

// ChunkDocument splits text into overlapping windows, splitting preferentially
// on the last whitespace before the window end and respecting UTF-8
// code-point boundaries (spec §4.3). defaultGeometry, if non-nil, is
// inherited by every produced chunk.
func ChunkDocument(content string, opts ChunkerOptions, defaultGeometry *geo.Geometry) []Chunk {
	if opts.WindowSize <= 0 {
		opts = DefaultChunkerOptions()
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []Chunk
	byteLen := len(content)
	start := 0
	idx := 0

	for start < byteLen {
		end := start + opts.WindowSize
		if end > byteLen {
			end = byteLen
		} else {
			end = preferWhitespaceSplit(content, start, end)
		}
		end = alignToRuneBoundary(content, end)

		piece := content[start:end]
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, Chunk{
				Index:       idx,
				Content:     piece,
				StartOffset: start,
				EndOffset:   end,
				Geometry:    defaultGeometry,
			})
			idx++
		}

		if end >= byteLen {
			break
		}
		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = alignToRuneBoundary(content, next)
	}

	return chunks
}

// preferWhitespaceSplit looks backward from end (at most 100 bytes, and never
// past start) for the last whitespace byte, so windows don't split mid-word.
func preferWhitespaceSplit(content string, start, end int) int {
	const lookback = 100
	limit := end - lookback
	if limit < start {
		limit = start
	}
	for i := end; i > limit; i-- {
		if i <= start || i > len(content) {
			continue
		}
		if i == len(content) {
			continue
		}
		if content[i-1] == ' ' || content[i-1] == '\n' || content[i-1] == '\t' {
			return i
		}
	}
	return end
}

func alignToRuneBoundary(content string, offset int) int {
	if offset >= len(content) {
		return len(content)
	}
	for offset > 0 && !utf8.RuneStart(content[offset]) {
		offset--
	}
	return offset
}

// PropertyChunk renders a feature's properties as the single chunk a feature
// always yields (spec §4.3): key-sorted `key: value` lines.
func PropertyChunk(properties map[string]string) Chunk {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(properties[k])
		b.WriteString("\n")
	}
	return Chunk{Index: 0, Content: b.String(), StartOffset: 0, EndOffset: b.Len()}
}
