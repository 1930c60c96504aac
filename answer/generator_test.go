package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docbase/ai/mock"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/prompt"
	"github.com/poiesic/docbase/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Classify:    core.IsRetryable,
	}
}

func testSources() []prompt.Source {
	return []prompt.Source{
		{DocumentId: "doc-1", Filename: "handbook.md"},
		{DocumentId: "doc-2", Filename: "benefits.md"},
	}
}

func TestGenerateGroundedAnswer(t *testing.T) {
	client := mock.NewMockGenerator()
	client.Response = "You get 18 days of annual leave. [Source: handbook.md]"

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, answer.Status)
	assert.Contains(t, answer.Text, "18 days")
	assert.Equal(t, []string{"handbook.md"}, answer.Sources)
}

func TestGenerateDecline(t *testing.T) {
	client := mock.NewMockGenerator()
	client.Response = prompt.NoAnswerMarker

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, answer.Status)
	assert.Equal(t, FallbackText, answer.Text)
	assert.Empty(t, answer.Sources)
}

func TestGenerateDeclineWithExtraProse(t *testing.T) {
	client := mock.NewMockGenerator()
	client.Response = "I'm sorry, NO_ANSWER applies here."

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, FallbackText, answer.Text)
}

func TestGenerateEmptySourcesSkipsModel(t *testing.T) {
	client := mock.NewMockGenerator()

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, answer.Status)
	assert.Equal(t, FallbackText, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, client.CallCount(), "fallback must not be model-generated")
}

func TestGenerateFiltersUnknownCitations(t *testing.T) {
	client := mock.NewMockGenerator()
	client.Response = "Answer text. [Source: handbook.md] [Source: fabricated.md] [Source: handbook.md]"

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, []string{"handbook.md"}, answer.Sources)
}

func TestGenerateRetriesTransientFailure(t *testing.T) {
	client := mock.NewMockGenerator()
	calls := 0
	client.CompleteFunc = func(ctx context.Context, p string) (string, error) {
		calls++
		if calls < 3 {
			return "", core.NewGenerationError(errors.New("503"), true)
		}
		return "Recovered. [Source: handbook.md]", nil
	}

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, answer.Status)
	assert.Equal(t, 3, calls)
}

func TestGenerateTerminalFailure(t *testing.T) {
	client := mock.NewMockGenerator()
	calls := 0
	client.CompleteFunc = func(ctx context.Context, p string) (string, error) {
		calls++
		return "", core.NewGenerationError(errors.New("invalid model"), false)
	}

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.Error(t, err)
	assert.Equal(t, core.StatusError, answer.Status)
	assert.Equal(t, ErrorText, answer.Text)
	assert.Equal(t, 1, calls, "terminal errors must not be retried")
}

func TestGenerateExhaustedRetries(t *testing.T) {
	client := mock.NewMockGenerator()
	calls := 0
	client.CompleteFunc = func(ctx context.Context, p string) (string, error) {
		calls++
		return "", core.NewGenerationError(errors.New("rate limit"), true)
	}

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.Error(t, err)
	assert.Equal(t, core.StatusError, answer.Status)
	assert.Equal(t, 3, calls)
}

func TestGenerateTimeout(t *testing.T) {
	client := mock.NewMockGenerator()
	client.CompleteFunc = func(ctx context.Context, p string) (string, error) {
		<-ctx.Done()
		return "", core.NewGenerationTimeout(ctx.Err())
	}

	policy := fastPolicy()
	policy.MaxAttempts = 1
	generator, err := NewGenerator(client, WithTimeout(5*time.Millisecond), WithRetryPolicy(policy))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.Error(t, err)
	assert.Equal(t, core.StatusError, answer.Status)

	var genErr *core.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.True(t, genErr.Timeout)
}

func TestGenerateTimeoutBoundsRetries(t *testing.T) {
	client := mock.NewMockGenerator()
	client.CompleteFunc = func(ctx context.Context, p string) (string, error) {
		<-ctx.Done()
		return "", core.NewGenerationTimeout(ctx.Err())
	}

	// Retries are allowed, but the timeout caps the whole request: a hung
	// provider must not be re-invoked after the deadline expires.
	policy := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Classify:    core.IsRetryable,
	}
	generator, err := NewGenerator(client, WithTimeout(30*time.Millisecond), WithRetryPolicy(policy))
	require.NoError(t, err)

	start := time.Now()
	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, core.StatusError, answer.Status)
	assert.Equal(t, 1, client.CallCount())
	assert.Less(t, elapsed, time.Second)

	var genErr *core.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.True(t, genErr.Timeout)
}

func TestGenerateEmptyCompletionFallsBack(t *testing.T) {
	client := mock.NewMockGenerator()
	client.Response = "   "

	generator, err := NewGenerator(client, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	answer, err := generator.Generate(context.Background(), "the prompt", testSources())
	require.NoError(t, err)
	assert.Equal(t, FallbackText, answer.Text)
}
