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


// Package prompt assembles retrieved chunks, conversation history, and the
// question into a grounded completion prompt. The instruction block pins the
// model to the supplied context: it must cite sources inline and reply with
// the NoAnswerMarker when the context cannot answer the question.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docbase/core"
)

const (
	// NoAnswerMarker is the exact reply the instruction block demands when
	// the context does not contain the answer.
	NoAnswerMarker = "NO_ANSWER"

	// DefaultMaxChars is the default prompt size budget in runes.
	DefaultMaxChars = 12000

	// DefaultMaxHistoryTurns is the default number of past turns included.
	DefaultMaxHistoryTurns = 6
)

// instructions is the groundedness contract sent with every prompt.
const instructions = `You answer questions about an internal document base.
Use only the context below; do not use outside knowledge.
Mark every statement with the [Source: <filename>] tag of the context passage it came from.
If the context does not contain the answer, reply with exactly ` + NoAnswerMarker + ` and nothing else.`

// Source identifies a document whose chunk was included in the prompt.
// DocumentId is the stable identity; Filename is the display name used in
// citation tags.
type Source struct {
	DocumentId string
	Filename   string
}

// Assembler builds completion prompts within a size budget.
type Assembler struct {
	maxChars        int
	maxHistoryTurns int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxChars sets the prompt size budget in runes.
// Values below 1 fall back to DefaultMaxChars.
func WithMaxChars(maxChars int) Option {
	return func(a *Assembler) {
		if maxChars < 1 {
			maxChars = DefaultMaxChars
		}
		a.maxChars = maxChars
	}
}

// WithMaxHistoryTurns caps how many past turns are included.
func WithMaxHistoryTurns(turns int) Option {
	return func(a *Assembler) {
		if turns < 0 {
			turns = 0
		}
		a.maxHistoryTurns = turns
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		maxChars:        DefaultMaxChars,
		maxHistoryTurns: DefaultMaxHistoryTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the prompt for a question. Matches arrive best first from
// the retriever; duplicates of the same chunk are dropped. When the prompt
// exceeds the budget, history is trimmed oldest first, then the
// lowest-scoring context passages are dropped. The best passage is always
// kept, so a prompt can exceed the budget when that one passage alone does;
// callers configuring WithMaxChars below the chunk size accept this.
// The returned sources name the documents whose chunks made it into the
// final prompt.
func (a *Assembler) Assemble(question string, matches []*core.RetrievalMatch, history []core.Turn) (string, []Source) {
	blocks := dedupe(matches)

	if len(history) > a.maxHistoryTurns {
		history = history[len(history)-a.maxHistoryTurns:]
	}

	// Trim history oldest first, then context worst first, until the prompt
	// fits. The best passage is never dropped.
	for {
		prompt := render(question, blocks, history)
		if utf8.RuneCountInString(prompt) <= a.maxChars {
			return prompt, sourcesOf(blocks)
		}
		if len(history) > 0 {
			history = history[1:]
			continue
		}
		if len(blocks) > 1 {
			blocks = blocks[:len(blocks)-1]
			continue
		}
		return prompt, sourcesOf(blocks)
	}
}

// dedupe removes repeat matches of the same chunk, keeping the first and
// therefore best-scoring occurrence.
func dedupe(matches []*core.RetrievalMatch) []*core.ChunkRecord {
	type key struct {
		documentID string
		seq        int
	}
	seen := make(map[key]bool, len(matches))
	var blocks []*core.ChunkRecord
	for _, match := range matches {
		k := key{match.Record.DocumentId, match.Record.Seq}
		if seen[k] {
			continue
		}
		seen[k] = true
		blocks = append(blocks, match.Record)
	}
	return blocks
}

func render(question string, blocks []*core.ChunkRecord, history []core.Turn) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nContext:\n")

	if len(blocks) == 0 {
		b.WriteString("(no relevant passages found)\n")
	}
	for _, block := range blocks {
		fmt.Fprintf(&b, "\n[Source: %s]\n%s\n", block.Filename, block.Text)
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Question, turn.Answer)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", question)
	return b.String()
}

// sourcesOf lists each document once, in passage order.
func sourcesOf(blocks []*core.ChunkRecord) []Source {
	seen := make(map[string]bool, len(blocks))
	var sources []Source
	for _, block := range blocks {
		if seen[block.DocumentId] {
			continue
		}
		seen[block.DocumentId] = true
		sources = append(sources, Source{DocumentId: block.DocumentId, Filename: block.Filename})
	}
	return sources
}
