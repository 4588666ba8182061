// Package store persists documents and their chunks. Three adapters
// share one interface: an in-memory map for tests and throwaway runs,
// SQLite for the default single-node deployment, and Postgres with
// pgvector for shared deployments.
package store

import (
	"context"
	"fmt"

	"github.com/studydesk/studydesk/internal/config"
	"github.com/studydesk/studydesk/internal/domain"
)

// Candidate is a chunk joined with the document fields retrieval needs
// at scoring time.
type Candidate struct {
	Chunk      domain.Chunk
	CourseCode string
	Confidence domain.Confidence
}

// Store is the persistence boundary of the service.
//
// ReplaceChunks swaps a document's entire chunk set in one transaction,
// so re-ingesting a document can never leave a mix of old and new
// chunks behind. ListCandidates returns chunks in a deterministic
// order (document ID, then ordinal); ranking relies on that order for
// stable tie-breaking.
type Store interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
	UpdateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, id string) error

	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	// GetChunks returns a document's chunks ordered by ordinal.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListCandidates returns every chunk, optionally narrowed to one
	// course code and to chunks that carry a vector.
	ListCandidates(ctx context.Context, courseCode string, vectorOnly bool) ([]Candidate, error)

	CountDocuments(ctx context.Context) (int, error)
	// ChunkCounts maps document ID to the number of stored chunks.
	ChunkCounts(ctx context.Context) (map[string]int, error)

	Close() error
}

// Open constructs the adapter named by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemory(cfg.EmbedDim), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath, cfg.EmbedDim)
	case "postgres":
		return NewPostgres(ctx, cfg.PostgresDSN, cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// validateDimensions rejects chunk vectors whose length differs from the
// store's configured dimension. Nil vectors pass; they mean "embedding
// failed" and are stored as NULL.
func validateDimensions(chunks []domain.Chunk, dim int) error {
	for _, ch := range chunks {
		if ch.Vector == nil {
			continue
		}
		if len(ch.Vector) != dim {
			return fmt.Errorf("chunk %d has %d dimensions, store expects %d: %w",
				ch.Ordinal, len(ch.Vector), dim, domain.ErrDimensionMismatch)
		}
	}
	return nil
}
