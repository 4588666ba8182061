package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/studydesk/studydesk/internal/domain"
)

// Memory keeps everything in process. It honors the same contracts as
// the durable adapters, including dimension validation and candidate
// ordering, so tests against it transfer.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]domain.Document
	chunks map[string][]domain.Chunk
	dim    int
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store expecting vectors of dim.
func NewMemory(dim int) *Memory {
	return &Memory{
		docs:   make(map[string]domain.Document),
		chunks: make(map[string][]domain.Chunk),
		dim:    dim,
	}
}

func (m *Memory) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	m.docs[doc.ID] = *doc
	return nil
}

func (m *Memory) UpdateDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	doc.UpdatedAt = time.Now().UTC()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

func (m *Memory) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]domain.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (m *Memory) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *Memory) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if err := validateDimensions(chunks, m.dim); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[documentID]; !ok {
		return domain.ErrNotFound
	}

	replacement := make([]domain.Chunk, len(chunks))
	copy(replacement, chunks)
	sort.Slice(replacement, func(i, j int) bool {
		return replacement[i].Ordinal < replacement[j].Ordinal
	})

	if len(replacement) == 0 {
		delete(m.chunks, documentID)
		return nil
	}
	m.chunks[documentID] = replacement
	return nil
}

func (m *Memory) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.chunks[documentID]
	chunks := make([]domain.Chunk, len(stored))
	copy(chunks, stored)
	return chunks, nil
}

func (m *Memory) ListCandidates(_ context.Context, courseCode string, vectorOnly bool) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docIDs := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	var out []Candidate
	for _, id := range docIDs {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		if courseCode != "" && doc.CourseCode != courseCode {
			continue
		}
		for _, ch := range m.chunks[id] {
			if vectorOnly && ch.Vector == nil {
				continue
			}
			out = append(out, Candidate{
				Chunk:      ch,
				CourseCode: doc.CourseCode,
				Confidence: doc.Confidence,
			})
		}
	}
	return out, nil
}

func (m *Memory) CountDocuments(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *Memory) ChunkCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.chunks))
	for id, chunks := range m.chunks {
		counts[id] = len(chunks)
	}
	return counts, nil
}

func (m *Memory) Close() error { return nil }
