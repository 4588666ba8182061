package domain

import "time"

// Chunk is one retrievable segment of a document's text. Ordinals are
// dense and 0-based per document and preserve generation order. Vector
// is nil when vectorization failed for this chunk; such chunks are
// skipped by similarity scoring but still reachable through keyword
// search.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Content    string
	Vector     []float32
	CreatedAt  time.Time
}

// RetrievedChunk is one ranked retrieval hit. Confidence is inherited
// from the owning document.
type RetrievedChunk struct {
	ChunkID    string     `json:"chunk_id"`
	DocumentID string     `json:"document_id"`
	Ordinal    int        `json:"ordinal"`
	Content    string     `json:"content"`
	Score      float64    `json:"score"`
	Confidence Confidence `json:"confidence"`
}

// RetrievalResult is the ephemeral answer to one retrieval query:
// ranked chunks plus an aggregate confidence label for the whole set.
type RetrievalResult struct {
	Chunks     []RetrievedChunk `json:"chunks"`
	Confidence Confidence       `json:"confidence"`
}
