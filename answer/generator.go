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


// Package answer turns an assembled prompt into a final Answer. It owns the
// request timeout and retry policy around the completion provider, maps the
// model's decline marker onto the fixed fallback text, and verifies that
// cited sources actually appeared in the prompt.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/docbase/ai"
	"github.com/poiesic/docbase/core"
	"github.com/poiesic/docbase/prompt"
	"github.com/poiesic/docbase/retry"
)

const (
	// DefaultTimeout bounds one answer request end to end, retries and
	// backoff included.
	DefaultTimeout = 30 * time.Second

	// FallbackText is the fixed reply for questions the document base cannot
	// answer. It is never model-generated.
	FallbackText = "I could not find an answer to that in the document base. " +
		"Please contact the support team for help with this question."

	// ErrorText is the safe reply when answering fails internally.
	ErrorText = "Something went wrong while answering your question. Please try again in a moment."
)

// citationPattern matches inline [Source: <filename>] tags in model output.
var citationPattern = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)

// Generator produces grounded answers from assembled prompts.
type Generator struct {
	client  ai.Generator
	policy  retry.Policy
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout sets the total timeout for one answer request. It covers all
// retry attempts, not each attempt separately.
// Values of zero or below fall back to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		g.timeout = timeout
	}
}

// WithRetryPolicy sets the retry policy around completion requests.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(g *Generator) {
		g.policy = policy
	}
}

// NewGenerator creates an answer generator over a completion client.
func NewGenerator(client ai.Generator, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: completion client required", core.ErrInvalidInput)
	}

	g := &Generator{
		client:  client,
		policy:  retry.DefaultPolicy(),
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "answer"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate completes the prompt and shapes the reply into an Answer.
//
// The decline marker and an empty source list both map to the fixed
// fallback text with StatusSuccess: an honest "not in the documents" is a
// successful outcome. Provider failures after retries yield StatusError
// with a safe message; the raw error is returned alongside for logging but
// the Answer never carries it.
func (g *Generator) Generate(ctx context.Context, promptText string, sources []prompt.Source) (*core.Answer, error) {
	if len(sources) == 0 {
		return fallbackAnswer(), nil
	}

	// The timeout bounds the whole request, retries and backoff included.
	// Once it expires no further attempts are made.
	tctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var completion string
	err := g.policy.Do(tctx, func() error {
		out, completeErr := g.client.Complete(tctx, promptText)
		if completeErr != nil {
			return completeErr
		}
		completion = out
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !isGenerationError(err) {
			err = core.NewGenerationTimeout(err)
		}
		g.logger.Error("completion failed", "err", err)
		return &core.Answer{Text: ErrorText, Status: core.StatusError}, err
	}

	completion = strings.TrimSpace(completion)
	if completion == "" || isDecline(completion) {
		return fallbackAnswer(), nil
	}

	return &core.Answer{
		Text:    completion,
		Status:  core.StatusSuccess,
		Sources: citedSources(completion, sources),
	}, nil
}

func fallbackAnswer() *core.Answer {
	return &core.Answer{Text: FallbackText, Status: core.StatusSuccess, Sources: []string{}}
}

// isGenerationError reports whether err already carries provider context.
func isGenerationError(err error) bool {
	var ge *core.GenerationError
	return errors.As(err, &ge)
}

// isDecline reports whether the model declined to answer. Models sometimes
// wrap the marker in extra prose, so any occurrence counts as a decline.
func isDecline(completion string) bool {
	return strings.Contains(completion, prompt.NoAnswerMarker)
}

// citedSources extracts the [Source: ...] tags from the completion and keeps
// those naming a document that was actually in the prompt, deduplicated by
// document, in citation order. Tags pointing at unknown filenames are
// dropped rather than surfaced as sources.
func citedSources(completion string, sources []prompt.Source) []string {
	byFilename := make(map[string]prompt.Source, len(sources))
	for _, source := range sources {
		byFilename[source.Filename] = source
	}

	seen := make(map[string]bool)
	cited := []string{}
	for _, tag := range citationPattern.FindAllStringSubmatch(completion, -1) {
		filename := strings.TrimSpace(tag[1])
		source, ok := byFilename[filename]
		if !ok || seen[source.DocumentId] {
			continue
		}
		seen[source.DocumentId] = true
		cited = append(cited, source.Filename)
	}
	return cited
}
