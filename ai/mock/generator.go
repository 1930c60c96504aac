package mock

import "context"

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// CompleteFunc is called by Complete if set.
	// If nil, returns Response.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// Response is returned by Complete when CompleteFunc is nil.
	Response string

	// Prompts records every prompt passed to Complete, in order.
	Prompts []string

	callCount int
}

// NewMockGenerator creates a mock generator that replies with a fixed answer.
// Note: Returns concrete type to allow test assertions.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Response: "mock answer"}
}

// Complete records the prompt and returns the injected or fixed response.
func (m *MockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	m.Prompts = append(m.Prompts, prompt)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return m.Response, nil
}

// CallCount returns the number of Complete invocations.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// LastPrompt returns the most recent prompt, or "" if none were made.
func (m *MockGenerator) LastPrompt() string {
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

// Reset clears recorded prompts, call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.Prompts = nil
	m.CompleteFunc = nil
	m.Response = "mock answer"
}
