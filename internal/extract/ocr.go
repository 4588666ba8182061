package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/studydesk/studydesk/internal/domain"
)

// OCR extracts text from images through an external OCR service. The
// method is lossy, so documents fed by it start at low confidence until
// cleanup earns them an upgrade.
type OCR struct {
	client *remoteClient
}

var _ Extractor = (*OCR)(nil)

func NewOCR(baseURL, token string) *OCR {
	return &OCR{client: newRemoteClient(baseURL, token, 2*time.Minute)}
}

func (o *OCR) Reliability() domain.Confidence { return domain.ConfidenceLow }

func (o *OCR) Extract(ctx context.Context, path string) (string, error) {
	text, err := o.client.postFile(ctx, "/v1/ocr", "image", path)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

func (o *OCR) Close() {
	o.client.Close()
}
