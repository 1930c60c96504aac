// Package mock provides test double implementations of the ai interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run
// without external AI services and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	vectors, err := provider.Embedder().EmbedTexts(ctx, texts)
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors derived from a text hash
//   - MockGenerator: Echoes the prompt tail so tests can assert on prompt content
//   - MockProvider: Aggregates mock embedder and generator
package mock
