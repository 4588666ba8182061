package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studydesk/studydesk/internal/config"
	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/store"
)

const testDim = 4

// eachStore runs fn against every adapter that works without external
// infrastructure. The Postgres adapter shares the contract but needs a
// live server, so it is exercised in deployment, not here.
func eachStore(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory(testDim))
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"), testDim)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func newDoc(id, courseCode string) *domain.Document {
	return &domain.Document{
		ID:         id,
		FileName:   id + ".pdf",
		MediaType:  domain.MediaPDF,
		Category:   domain.CategoryHandout,
		CourseCode: courseCode,
		Status:     domain.StatusPending,
		Confidence: domain.ConfidenceLow,
	}
}

func configWithDriver(driver string) config.Config {
	return config.Config{StoreDriver: driver, EmbedDim: testDim}
}

func TestStore_DocumentLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		doc := newDoc("doc-1", "BIO101")
		require.NoError(t, s.SaveDocument(ctx, doc))
		assert.False(t, doc.CreatedAt.IsZero(), "save must stamp created_at")

		got, err := s.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "doc-1.pdf", got.FileName)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, "BIO101", got.CourseCode)

		got.Status = domain.StatusDone
		got.Confidence = domain.ConfidenceMedium
		got.RawText = "extracted text"
		require.NoError(t, s.UpdateDocument(ctx, got))

		got, err = s.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, got.Status)
		assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
		assert.Equal(t, "extracted text", got.RawText)

		docs, err := s.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 1)

		require.NoError(t, s.DeleteDocument(ctx, "doc-1"))
		_, err = s.GetDocument(ctx, "doc-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_MissingDocumentErrors(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		_, err := s.GetDocument(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = s.UpdateDocument(ctx, newDoc("ghost", ""))
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = s.DeleteDocument(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = s.ReplaceChunks(ctx, "ghost", nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_ReplaceChunksRoundTrips(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-1", "BIO101")))

		// Ordinals arrive out of order; reads must come back sorted.
		chunks := []domain.Chunk{
			{ID: "c-2", DocumentID: "doc-1", Ordinal: 2, Content: "third", Vector: nil},
			{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, Content: "first", Vector: []float32{1, 0, 0, 0}},
			{ID: "c-1", DocumentID: "doc-1", Ordinal: 1, Content: "second", Vector: []float32{0, 0.5, 0.5, 0}},
		}
		require.NoError(t, s.ReplaceChunks(ctx, "doc-1", chunks))

		got, err := s.GetChunks(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, got, 3)

		for i, ch := range got {
			assert.Equal(t, i, ch.Ordinal, "chunks must be ordered by ordinal")
		}
		assert.Equal(t, []float32{1, 0, 0, 0}, got[0].Vector)
		assert.Equal(t, []float32{0, 0.5, 0.5, 0}, got[1].Vector)
		assert.Nil(t, got[2].Vector, "failed embeddings round-trip as nil")
	})
}

func TestStore_ReplaceChunksSwapsWholeSet(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-1", "")))

		first := []domain.Chunk{
			{ID: "old-0", DocumentID: "doc-1", Ordinal: 0, Content: "old zero"},
			{ID: "old-1", DocumentID: "doc-1", Ordinal: 1, Content: "old one"},
			{ID: "old-2", DocumentID: "doc-1", Ordinal: 2, Content: "old two"},
		}
		require.NoError(t, s.ReplaceChunks(ctx, "doc-1", first))

		second := []domain.Chunk{
			{ID: "new-0", DocumentID: "doc-1", Ordinal: 0, Content: "new zero"},
		}
		require.NoError(t, s.ReplaceChunks(ctx, "doc-1", second))

		got, err := s.GetChunks(ctx, "doc-1")
		require.NoError(t, err)
		require.Len(t, got, 1, "old chunks must not survive a replace")
		assert.Equal(t, "new-0", got[0].ID)
		assert.Equal(t, "new zero", got[0].Content)
	})
}

func TestStore_ReplaceChunksRejectsWrongDimension(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-1", "")))

		bad := []domain.Chunk{
			{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, Content: "x", Vector: []float32{1, 2}},
		}
		err := s.ReplaceChunks(ctx, "doc-1", bad)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		got, err := s.GetChunks(ctx, "doc-1")
		require.NoError(t, err)
		assert.Empty(t, got, "rejected replace must not store anything")
	})
}

func TestStore_DeleteDocumentCascadesToChunks(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-1", "BIO101")))
		require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, Content: "x", Vector: []float32{1, 0, 0, 0}},
			{ID: "c-1", DocumentID: "doc-1", Ordinal: 1, Content: "y", Vector: []float32{0, 1, 0, 0}},
		}))

		require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

		chunks, err := s.GetChunks(ctx, "doc-1")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		counts, err := s.ChunkCounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, counts)

		cands, err := s.ListCandidates(ctx, "", false)
		require.NoError(t, err)
		assert.Empty(t, cands)
	})
}

func TestStore_ListCandidatesScopesAndOrders(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		bio := newDoc("doc-a", "BIO101")
		bio.Confidence = domain.ConfidenceMedium
		require.NoError(t, s.SaveDocument(ctx, bio))
		require.NoError(t, s.ReplaceChunks(ctx, "doc-a", []domain.Chunk{
			{ID: "a-1", DocumentID: "doc-a", Ordinal: 1, Content: "membrane transport", Vector: []float32{0, 1, 0, 0}},
			{ID: "a-0", DocumentID: "doc-a", Ordinal: 0, Content: "cell structure", Vector: []float32{1, 0, 0, 0}},
		}))

		math := newDoc("doc-b", "MTH201")
		require.NoError(t, s.SaveDocument(ctx, math))
		require.NoError(t, s.ReplaceChunks(ctx, "doc-b", []domain.Chunk{
			{ID: "b-0", DocumentID: "doc-b", Ordinal: 0, Content: "derivatives", Vector: []float32{0, 0, 1, 0}},
			{ID: "b-1", DocumentID: "doc-b", Ordinal: 1, Content: "integrals", Vector: nil},
		}))

		// Unscoped, all chunks: deterministic document-then-ordinal order.
		all, err := s.ListCandidates(ctx, "", false)
		require.NoError(t, err)
		require.Len(t, all, 4)
		ids := []string{all[0].Chunk.ID, all[1].Chunk.ID, all[2].Chunk.ID, all[3].Chunk.ID}
		assert.Equal(t, []string{"a-0", "a-1", "b-0", "b-1"}, ids)

		// Course scope excludes the other course entirely.
		scoped, err := s.ListCandidates(ctx, "BIO101", false)
		require.NoError(t, err)
		require.Len(t, scoped, 2)
		for _, cand := range scoped {
			assert.Equal(t, "BIO101", cand.CourseCode)
			assert.Equal(t, domain.ConfidenceMedium, cand.Confidence)
		}

		// vectorOnly drops the chunk whose embedding failed.
		vectored, err := s.ListCandidates(ctx, "MTH201", true)
		require.NoError(t, err)
		require.Len(t, vectored, 1)
		assert.Equal(t, "b-0", vectored[0].Chunk.ID)

		// A scope that matches nothing yields nothing.
		none, err := s.ListCandidates(ctx, "CHM999", false)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_Counts(t *testing.T) {
	eachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		n, err := s.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-1", "")))
		require.NoError(t, s.SaveDocument(ctx, newDoc("doc-2", "")))
		require.NoError(t, s.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
			{ID: "c-0", DocumentID: "doc-1", Ordinal: 0, Content: "x"},
			{ID: "c-1", DocumentID: "doc-1", Ordinal: 1, Content: "y"},
		}))

		n, err = s.CountDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		counts, err := s.ChunkCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"doc-1": 2}, counts)
	})
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), configWithDriver("cassandra"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestOpen_BuildsMemoryStore(t *testing.T) {
	s, err := store.Open(context.Background(), configWithDriver("memory"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, ok := s.(*store.Memory)
	assert.True(t, ok)
}

func TestStore_ErrorsAreComparable(t *testing.T) {
	// Wrapped store errors must stay matchable for API status mapping.
	s := store.NewMemory(testDim)
	err := s.ReplaceChunks(context.Background(), "ghost", nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
