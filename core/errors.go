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


package core

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrInvalidInput indicates bad or empty input to chunking or embedding.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCollectionNotFound indicates a query or delete against a
	// nonexistent collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrUnsupportedFormat indicates a file format with no registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptFile indicates a file that could not be decoded by its extractor.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrIndexWrite indicates a failed write to the vector index.
	ErrIndexWrite = errors.New("index write failed")

	// ErrDocumentNotFound indicates the requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// EmbeddingError wraps a failure of the embedding provider.
// Retryable distinguishes transient failures (timeouts, 5xx, rate limiting)
// from terminal ones (bad request, auth failure).
type EmbeddingError struct {
	Retryable bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("embedding provider (%s): %v", kind, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError wraps err as an embedding provider failure.
func NewEmbeddingError(err error, retryable bool) *EmbeddingError {
	return &EmbeddingError{Retryable: retryable, Err: err}
}

// GenerationError wraps a failure of the completion provider.
// Timeout marks request-deadline expiry; Retryable additionally covers
// transient provider conditions such as rate limiting and 5xx responses.
type GenerationError struct {
	Timeout   bool
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("generation timed out: %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err as a completion provider failure.
func NewGenerationError(err error, retryable bool) *GenerationError {
	return &GenerationError{Retryable: retryable, Err: err}
}

// NewGenerationTimeout wraps err as an expired completion request.
func NewGenerationTimeout(err error) *GenerationError {
	return &GenerationError{Timeout: true, Retryable: true, Err: err}
}

// IsRetryable reports whether err is a transient provider failure that may
// succeed on retry. Structural errors (bad input, missing collection,
// corrupt file) are never retryable.
func IsRetryable(err error) bool {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}
