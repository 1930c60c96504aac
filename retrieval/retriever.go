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


// Package retrieval finds the chunks most relevant to a question. The
// retriever embeds the question, runs a similarity query against the vector
// index, and drops matches below the relevance floor. Finding nothing is a
// normal outcome, not an error.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/storage"
)

const (
	// DefaultTopK is the default number of candidate chunks fetched from
	// the index before the relevance floor is applied.
	DefaultTopK = 5

	// DefaultMinScore is the default cosine similarity floor. Matches that
	// score below it are treated as noise and discarded.
	DefaultMinScore = 0.35
)

// Retriever performs semantic search over the vector index.
type Retriever struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	topK     int
	minScore float32
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK sets the number of candidates fetched from the index.
// Values below 1 fall back to DefaultTopK.
func WithTopK(topK int) Option {
	return func(r *Retriever) {
		if topK < 1 {
			topK = DefaultTopK
		}
		r.topK = topK
	}
}

// WithMinScore sets the relevance floor. Candidates scoring below it are
// discarded even when slots remain.
func WithMinScore(minScore float32) Option {
	return func(r *Retriever) {
		r.minScore = minScore
	}
}

// NewRetriever creates a retriever over an index and embedder.
func NewRetriever(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: vector index required", core.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", core.ErrInvalidInput)
	}

	r := &Retriever{
		index:    index,
		embedder: embedder,
		topK:     DefaultTopK,
		minScore: DefaultMinScore,
		logger:   slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Retrieve returns the most relevant chunks for the question, best first.
// An empty result means the document base has nothing relevant; callers
// decide what that means for them.
func (r *Retriever) Retrieve(ctx context.Context, collection, question string, filter *storage.Filter) ([]*core.RetrievalMatch, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	candidates, err := r.index.Query(ctx, collection, vector, r.topK, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]*core.RetrievalMatch, 0, len(candidates))
	for _, match := range candidates {
		if match.Score < r.minScore {
			// Candidates arrive best first, so the rest score lower too.
			break
		}
		matches = append(matches, match)
	}

	r.logger.Debug("retrieved chunks",
		"collection", collection, "candidates", len(candidates), "kept", len(matches))
	return matches, nil
}
