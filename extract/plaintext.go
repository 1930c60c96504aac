package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docbase/core"
)

// Plaintext extracts .txt files by reading them directly.
type Plaintext struct{}

var _ TextExtractor = (*Plaintext)(nil)

func (p *Plaintext) Extensions() []string {
	return []string{".txt"}
}

func (p *Plaintext) Extract(data []byte) (string, error) {
	return decodeText(data)
}

// Markdown extracts .md files. Markup is kept as-is: headings and list
// markers carry structure the chunker's natural-break scan can use.
type Markdown struct {
}

var _ TextExtractor = (*Markdown)(nil)

func (m *Markdown) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (m *Markdown) Extract(data []byte) (string, error) {
	return decodeText(data)
}

// decodeText validates UTF-8 and normalizes line endings.
func decodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", core.ErrCorruptFile)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return text, nil
}
