package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/studydesk/studydesk/internal/domain"
)

// csvBatchSize is how many data rows share one paragraph. Batches keep
// a header line in every paragraph, so a chunk never loses its column
// labels to a split.
const csvBatchSize = 20

// CSV renders header-labeled rows as text. Course exports are rarely
// rectangular, so ragged rows are tolerated.
type CSV struct{}

var _ Extractor = (*CSV)(nil)

func (c *CSV) Reliability() domain.Confidence { return domain.ConfidenceMedium }

func (c *CSV) Extract(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return "", nil
	}

	headers := records[0]
	dataRows := records[1:]

	var batches []string
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := i + csvBatchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}
		batches = append(batches, strings.TrimSpace(text.String()))
	}

	return strings.Join(batches, "\n\n"), nil
}
