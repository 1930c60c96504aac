package openai

import (
	"context"
	"errors"
	"strings"
)

// retryableFragments are substrings of provider error messages that indicate
// a transient condition. OpenAI-compatible servers differ in how they phrase
// these, so matching is deliberately loose.
var retryableFragments = []string{
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"server error",
	"eof",
}

// isTransient reports whether a provider error is worth retrying.
// Bad requests and auth failures are terminal; rate limiting, 5xx responses
// and network-level failures are transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
