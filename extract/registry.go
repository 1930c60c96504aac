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


// Package extract converts uploaded files into plain text for chunking.
//
// Extraction is a capability interface with one variant per supported
// format, selected by a registry keyed on file extension. Adding a format
// means registering a variant, not branching inside the pipeline. Binary
// formats (.pdf, .docx, .pptx, .xlsx) are owned by external collaborators
// and are wired in through Register.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/docbase/core"
)

// TextExtractor converts one file format into plain text.
// Implementations are pure: same bytes in, same text out.
type TextExtractor interface {
	// Extract returns the plain text of the file.
	// Fails with core.ErrCorruptFile if the bytes cannot be decoded.
	Extract(data []byte) (string, error)

	// Extensions lists the lowercase file extensions (with dot) this
	// extractor handles.
	Extensions() []string
}

// Registry selects a TextExtractor by file extension.
type Registry struct {
	byExt map[string]TextExtractor
}

// NewRegistry creates a registry with the built-in extractors
// (.txt, .md, .csv) registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]TextExtractor)}
	r.Register(&Plaintext{})
	r.Register(&Markdown{})
	r.Register(&CSV{})
	return r
}

// Register adds an extractor for all its extensions, replacing any
// previous registration.
func (r *Registry) Register(e TextExtractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Supported reports whether filename's extension has a registered extractor.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract converts the file contents to plain text using the extractor
// registered for filename's extension. Fails with core.ErrUnsupportedFormat
// when no extractor is registered.
func (r *Registry) Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, ext)
	}
	text, err := extractor.Extract(data)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", filename, err)
	}
	return text, nil
}
