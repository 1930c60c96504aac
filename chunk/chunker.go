// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package chunk splits normalized document text into overlapping,
// bounded-size segments. Splitting is a pure transform: the ordered chunks
// cover the whole input with no gaps, and adjacent chunks share exactly the
// configured overlap so context survives chunk boundaries.
package chunk

import (
	"fmt"

	"github.com/poiesic/docbase/core"
)

const (
	// DefaultSize is the default maximum chunk length in runes.
	DefaultSize = 1000

	// DefaultOverlap is the default number of runes shared between
	// adjacent chunks.
	DefaultOverlap = 150
)

// Chunker splits text into overlapping windows, preferring natural breaks
// (paragraph, sentence, word) over mid-word splits when one falls within the
// tolerance window before the size limit.
type Chunker struct {
	size      int
	overlap   int
	tolerance int
}

// New creates a Chunker. size is the maximum chunk length in runes and
// overlap the exact number of runes adjacent chunks share.
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: chunk size %d is not positive", core.ErrInvalidInput, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d is negative", core.ErrInvalidInput, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", core.ErrInvalidInput, overlap, size)
	}

	// The tolerance window bounds how far a chunk may shrink to land on a
	// natural break. It must leave the cut point past the overlap region or
	// splitting would stop making progress.
	tolerance := size * 15 / 100
	if tolerance >= size-overlap {
		tolerance = size - overlap - 1
	}
	if tolerance < 0 {
		tolerance = 0
	}

	return &Chunker{size: size, overlap: overlap, tolerance: tolerance}, nil
}

// Default creates a Chunker with the default size and overlap.
func Default() *Chunker {
	c, _ := New(DefaultSize, DefaultOverlap)
	return c
}

// Split produces the ordered chunk sequence for a document's text.
// Fails with core.ErrInvalidInput on empty text.
func (c *Chunker) Split(documentID, text string) ([]core.Chunk, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: document %s has no text", core.ErrInvalidInput, documentID)
	}

	runes := []rune(text)
	var chunks []core.Chunk
	start := 0
	seq := 0

	for {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, core.Chunk{
				DocumentId: documentID,
				Seq:        seq,
				Text:       string(runes[start:]),
			})
			break
		}

		cut := c.findBreak(runes, start, end)
		chunks = append(chunks, core.Chunk{
			DocumentId: documentID,
			Seq:        seq,
			Text:       string(runes[start:cut]),
		})
		start = cut - c.overlap
		seq++
	}

	return chunks, nil
}

// findBreak returns the cut position for a chunk spanning [start, end).
// It scans backward from end through the tolerance window for, in order of
// preference, a paragraph break, a sentence end, a line break, or a word
// boundary. With no break in the window it hard-splits at end.
func (c *Chunker) findBreak(runes []rune, start, end int) int {
	limit := end - c.tolerance
	if limit < start+1 {
		limit = start + 1
	}

	// Paragraph break: cut after the blank line.
	for i := end; i > limit; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}

	// Sentence end: a terminator followed by whitespace. Cut after the
	// terminator; the whitespace leads the next chunk.
	for i := end; i > limit; i-- {
		if isSentenceEnd(runes[i-1]) && i < len(runes) && isSpace(runes[i]) {
			return i
		}
	}

	// Line break.
	for i := end; i > limit; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}

	// Word boundary.
	for i := end; i > limit; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
