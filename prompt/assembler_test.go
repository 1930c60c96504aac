package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/docbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(docID string, seq int, filename, text string, score float32) *core.RetrievalMatch {
	return &core.RetrievalMatch{
		Record: &core.ChunkRecord{
			Id:         core.ChunkID(docID, 1, seq),
			DocumentId: docID,
			Filename:   filename,
			Version:    1,
			Seq:        seq,
			Text:       text,
		},
		Score: score,
	}
}

func TestAssembleBasic(t *testing.T) {
	assembler := NewAssembler()

	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "handbook.md", "Annual Leave: 18 days per calendar year.", 0.9),
		match("doc-2", 3, "benefits.md", "Health insurance starts on day one.", 0.7),
	}

	prompt, sources := assembler.Assemble("How many days of leave?", matches, nil)

	assert.Contains(t, prompt, "[Source: handbook.md]")
	assert.Contains(t, prompt, "Annual Leave: 18 days per calendar year.")
	assert.Contains(t, prompt, "[Source: benefits.md]")
	assert.Contains(t, prompt, NoAnswerMarker)
	assert.Contains(t, prompt, "Question: How many days of leave?")

	require.Len(t, sources, 2)
	assert.Equal(t, Source{DocumentId: "doc-1", Filename: "handbook.md"}, sources[0])
	assert.Equal(t, Source{DocumentId: "doc-2", Filename: "benefits.md"}, sources[1])
}

func TestAssembleContextBeforeQuestion(t *testing.T) {
	assembler := NewAssembler()

	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "handbook.md", "some passage", 0.9),
	}
	prompt, _ := assembler.Assemble("a question", matches, nil)

	contextPos := strings.Index(prompt, "some passage")
	questionPos := strings.Index(prompt, "Question: a question")
	require.GreaterOrEqual(t, contextPos, 0)
	require.GreaterOrEqual(t, questionPos, 0)
	assert.Less(t, contextPos, questionPos)
}

func TestAssembleDeduplicatesChunks(t *testing.T) {
	assembler := NewAssembler()

	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "handbook.md", "the passage", 0.9),
		match("doc-1", 0, "handbook.md", "the passage", 0.8),
		match("doc-1", 1, "handbook.md", "another passage", 0.7),
	}

	prompt, sources := assembler.Assemble("a question", matches, nil)

	assert.Equal(t, 1, strings.Count(prompt, "the passage\n"))
	assert.Len(t, sources, 1, "one document yields one source")
}

func TestAssembleHistory(t *testing.T) {
	assembler := NewAssembler()

	history := []core.Turn{
		{Question: "What is the leave policy?", Answer: "18 days per year. [Source: handbook.md]"},
	}
	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "handbook.md", "Annual Leave: 18 days.", 0.9),
	}

	prompt, _ := assembler.Assemble("Does it carry over?", matches, history)

	assert.Contains(t, prompt, "User: What is the leave policy?")
	assert.Contains(t, prompt, "Assistant: 18 days per year.")
}

func TestAssembleHistoryTurnCap(t *testing.T) {
	assembler := NewAssembler(WithMaxHistoryTurns(2))

	history := []core.Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
	}
	prompt, _ := assembler.Assemble("next question", nil, history)

	assert.NotContains(t, prompt, "User: q1")
	assert.Contains(t, prompt, "User: q2")
	assert.Contains(t, prompt, "User: q3")
}

func TestAssembleBudgetDropsHistoryFirst(t *testing.T) {
	// Budget fits the context but not the history. The oldest turn goes
	// first; the context stays.
	passage := strings.Repeat("p", 200)
	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "handbook.md", passage, 0.9),
	}
	history := []core.Turn{
		{Question: "old question", Answer: strings.Repeat("o", 600)},
		{Question: "recent question", Answer: "short answer"},
	}

	assembler := NewAssembler(WithMaxChars(700))
	prompt, sources := assembler.Assemble("a question", matches, history)

	assert.NotContains(t, prompt, "old question")
	assert.Contains(t, prompt, "recent question")
	assert.Contains(t, prompt, passage)
	assert.Len(t, sources, 1)
}

func TestAssembleBudgetDropsWorstContext(t *testing.T) {
	// No history; context alone exceeds the budget. The lowest-scoring
	// passage is dropped, the best one survives.
	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "best.md", strings.Repeat("b", 300), 0.9),
		match("doc-2", 0, "worst.md", strings.Repeat("w", 300), 0.4),
	}

	assembler := NewAssembler(WithMaxChars(900))
	prompt, sources := assembler.Assemble("a question", matches, nil)

	assert.Contains(t, prompt, "[Source: best.md]")
	assert.NotContains(t, prompt, "[Source: worst.md]")
	require.Len(t, sources, 1)
	assert.Equal(t, "doc-1", sources[0].DocumentId)
}

func TestAssembleNeverDropsBestPassage(t *testing.T) {
	matches := []*core.RetrievalMatch{
		match("doc-1", 0, "best.md", strings.Repeat("b", 5000), 0.9),
	}

	assembler := NewAssembler(WithMaxChars(100))
	prompt, sources := assembler.Assemble("a question", matches, nil)

	assert.Contains(t, prompt, "[Source: best.md]")
	assert.Len(t, sources, 1)
	// Over budget is accepted rather than answering without any context.
	assert.Greater(t, utf8.RuneCountInString(prompt), 100)
}

func TestAssembleEmptyContext(t *testing.T) {
	assembler := NewAssembler()

	prompt, sources := assembler.Assemble("a question", nil, nil)

	assert.Contains(t, prompt, "(no relevant passages found)")
	assert.Empty(t, sources)
}
