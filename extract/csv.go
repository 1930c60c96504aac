package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/poiesic/docbase/core"
)

// CSV extracts .csv files as one line of comma-joined fields per record.
type CSV struct{}

var _ TextExtractor = (*CSV)(nil)

func (c *CSV) Extensions() []string {
	return []string{".csv"}
}

func (c *CSV) Extract(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are common in exports

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCorruptFile, err)
	}

	var b strings.Builder
	for _, record := range records {
		b.WriteString(strings.Join(record, ", "))
		b.WriteString("\n")
	}
	return b.String(), nil
}
