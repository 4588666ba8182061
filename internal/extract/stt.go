package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/studydesk/studydesk/internal/domain"
)

// STT transcribes audio recordings through an external speech-to-text
// service. Transcripts of lecture audio are noisy, so they start at low
// confidence like OCR output. The longer timeout absorbs hour-long
// recordings.
type STT struct {
	client *remoteClient
}

var _ Extractor = (*STT)(nil)

func NewSTT(baseURL, token string) *STT {
	return &STT{client: newRemoteClient(baseURL, token, 10*time.Minute)}
}

func (s *STT) Reliability() domain.Confidence { return domain.ConfidenceLow }

func (s *STT) Extract(ctx context.Context, path string) (string, error) {
	text, err := s.client.postFile(ctx, "/v1/transcriptions", "file", path)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

func (s *STT) Close() {
	s.client.Close()
}
