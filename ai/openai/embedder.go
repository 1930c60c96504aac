package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/retry"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Batches are capped at the configured size and each batch is retried
// independently with exponential backoff.
type Embedder struct {
	embedder  embeddings.Embedder
	batchSize int
	maxChars  int
	policy    retry.Policy
	logger    *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		batchSize: config.MaxBatchSize,
		maxChars:  config.MaxInputChars,
		policy:    retry.DefaultPolicy(),
		logger:    slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
// Output order matches input order, one vector per input. Transient provider
// errors are retried up to the policy's attempt count; the last underlying
// cause is carried by the returned core.EmbeddingError.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts to embed", core.ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text %d is empty", core.ErrInvalidInput, i)
		}
		if len(text) > e.maxChars {
			return nil, fmt.Errorf("%w: text %d exceeds %d chars", core.ErrInvalidInput, i, e.maxChars)
		}
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "batchSize", e.batchSize)

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var vectors [][]float32
		err := e.policy.Do(ctx, func() error {
			var embedErr error
			vectors, embedErr = e.embedder.EmbedDocuments(ctx, batch)
			if embedErr != nil {
				return core.NewEmbeddingError(embedErr, isTransient(embedErr))
			}
			return nil
		})
		if err != nil {
			e.logger.Error("failed to generate embeddings", "batchStart", start, "err", err)
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, core.NewEmbeddingError(
				fmt.Errorf("embedding result mismatch: expected %d, received %d", len(batch), len(vectors)), false)
		}
		result = append(result, vectors...)
	}

	return result, nil
}
