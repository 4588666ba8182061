package extract

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/studydesk/studydesk/internal/domain"
)

// Text reads plain text files, rebuilding paragraphs from blank-line
// separation.
type Text struct{}

var _ Extractor = (*Text)(nil)

func (t *Text) Reliability() domain.Confidence { return domain.ConfidenceMedium }

func (t *Text) Extract(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open text file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}

	return strings.Join(paragraphs, "\n\n"), nil
}
