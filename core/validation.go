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
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - Filename must not be empty
//   - Version must be >= 1
//
// NOT validated:
//   - Area (optional)
//   - StoragePath (owned by the upload boundary)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidInput)
	}
	if doc.Id == "" {
		return fmt.Errorf("%w: document id is empty", ErrInvalidInput)
	}
	if doc.Filename == "" {
		return fmt.Errorf("%w: filename is empty", ErrInvalidInput)
	}
	if doc.Version < 1 {
		return fmt.Errorf("%w: version %d is not positive", ErrInvalidInput, doc.Version)
	}
	return nil
}

// ValidateQuestion validates a user question before retrieval.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	return nil
}

// ValidateChunk validates a Chunk produced by the chunker.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidInput)
	}
	if chunk.DocumentId == "" {
		return fmt.Errorf("%w: chunk has no owning document", ErrInvalidInput)
	}
	if chunk.Seq < 0 {
		return fmt.Errorf("%w: chunk sequence %d is negative", ErrInvalidInput, chunk.Seq)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: chunk text is empty", ErrInvalidInput)
	}
	return nil
}
