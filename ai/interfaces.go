package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Used for ad hoc query embeddings, which are never persisted.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains one embedding per input, in input order.
	// Every text must be non-empty; implementations reject empty input with
	// core.ErrInvalidInput rather than sending it to the provider.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for an assembled prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Complete sends the prompt to the completion endpoint and returns the
	// raw answer text. Cancellation and deadlines are honored via ctx.
	Complete(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// Generator instances, ensuring they share configuration.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
