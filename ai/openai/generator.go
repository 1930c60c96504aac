package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
// Retry and timeout policy live in the answer package; a Generator performs
// exactly one completion call per Complete invocation and classifies the
// failure so the caller's retry policy can act on it.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Complete sends the prompt to the completion endpoint and returns the
// answer text. Temperature is pinned to 0 so answers stay grounded in the
// supplied context.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Error("completion request timed out", "err", err)
			return "", core.NewGenerationTimeout(err)
		}
		g.logger.Error("failed to generate completion", "err", err)
		return "", core.NewGenerationError(err, isTransient(err))
	}

	if len(response.Choices) < 1 {
		g.logger.Warn("no choices returned from model")
		return "", core.NewGenerationError(errors.New("empty completion response"), false)
	}

	return response.Choices[0].Content, nil
}
