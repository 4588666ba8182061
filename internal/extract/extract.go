// Package extract turns stored source files into raw text. Each
// extractor declares how trustworthy its method is: native-text formats
// come out at medium confidence, lossy OCR and transcription at low.
package extract

import (
	"context"
	"fmt"

	"github.com/studydesk/studydesk/internal/domain"
)

// Extractor produces raw text from a file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	// Reliability is the provisional confidence a document earns when
	// its text came from this extractor.
	Reliability() domain.Confidence
}

// Registry selects an extractor by the document's media type.
type Registry struct {
	byType map[domain.MediaType]Extractor
}

// NewRegistry returns an empty registry. The caller registers whatever
// its deployment supports; OCR and transcription are typically only
// registered when their services are configured.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[domain.MediaType]Extractor)}
}

// Register makes e the extractor for mt, replacing any previous one.
func (r *Registry) Register(mt domain.MediaType, e Extractor) {
	r.byType[mt] = e
}

// For returns the extractor registered for mt. The error wraps
// domain.ErrUnsupportedMedia so the pipeline can fail the document as
// permanently unsupported rather than retrying.
func (r *Registry) For(mt domain.MediaType) (Extractor, error) {
	e, ok := r.byType[mt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mt)
	}
	return e, nil
}
