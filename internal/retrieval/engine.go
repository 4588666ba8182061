// Package retrieval ranks stored chunks against a query. The primary
// path scores surrogate vectors by cosine similarity; when that path
// degenerates (zero query vector, no vector-bearing candidates, or no
// positive scores) it falls through to keyword matching within the
// same scope.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/store"
	"github.com/studydesk/studydesk/internal/vector"
)

// DefaultTopK is the result size used when the caller asks for none.
const DefaultTopK = 5

// CandidateSource feeds the engine the chunks eligible for one query.
// courseCode narrows to a single course when non-empty; vectorOnly
// drops chunks whose vectorization failed.
type CandidateSource interface {
	ListCandidates(ctx context.Context, courseCode string, vectorOnly bool) ([]store.Candidate, error)
}

// Engine answers retrieval queries from persisted chunks. It is a pure
// read path and safe for concurrent use.
type Engine struct {
	source   CandidateSource
	embedder vector.Embedder
	topK     int
	log      *slog.Logger
}

func NewEngine(source CandidateSource, embedder vector.Embedder, topK int, log *slog.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		source:   source,
		embedder: embedder,
		topK:     topK,
		log:      log,
	}
}

// Retrieve returns the topK chunks most similar to query, narrowed to
// courseCode when non-empty. A scope with no candidates yields an
// empty low-confidence result; it never widens to the full corpus.
func (e *Engine) Retrieve(ctx context.Context, query, courseCode string, topK int) (domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = e.topK
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.log.Warn("query vectorization failed, using keyword search", "error", err)
		return e.keywordResult(ctx, query, courseCode, topK)
	}

	candidates, err := e.source.ListCandidates(ctx, courseCode, true)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("list candidates: %w", err)
	}

	ranked := make([]domain.RetrievedChunk, 0, len(candidates))
	anyPositive := false
	for _, cand := range candidates {
		score := vector.Cosine(queryVec, cand.Chunk.Vector)
		if score > 0 {
			anyPositive = true
		}
		ranked = append(ranked, domain.RetrievedChunk{
			ChunkID:    cand.Chunk.ID,
			DocumentID: cand.Chunk.DocumentID,
			Ordinal:    cand.Chunk.Ordinal,
			Content:    cand.Chunk.Content,
			Score:      score,
			Confidence: cand.Confidence,
		})
	}

	if !anyPositive {
		return e.keywordResult(ctx, query, courseCode, topK)
	}

	sortRanked(ranked)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	var sum float64
	for _, rc := range ranked {
		sum += rc.Score
	}

	return domain.RetrievalResult{
		Chunks:     ranked,
		Confidence: domain.ConfidenceForMeanScore(sum / float64(len(ranked))),
	}, nil
}

// KeywordSearch scores chunks by the fraction of distinct query tokens
// found as case-insensitive substrings of their content. Chunks
// matching no token are dropped. Unlike the vector path it also sees
// chunks whose vectorization failed.
func (e *Engine) KeywordSearch(ctx context.Context, query, courseCode string, limit int) ([]domain.RetrievedChunk, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	candidates, err := e.source.ListCandidates(ctx, courseCode, false)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ranked := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, cand := range candidates {
		content := strings.ToLower(cand.Chunk.Content)
		found := 0
		for _, tok := range tokens {
			if strings.Contains(content, tok) {
				found++
			}
		}
		if found == 0 {
			continue
		}
		ranked = append(ranked, domain.RetrievedChunk{
			ChunkID:    cand.Chunk.ID,
			DocumentID: cand.Chunk.DocumentID,
			Ordinal:    cand.Chunk.Ordinal,
			Content:    cand.Chunk.Content,
			Score:      float64(found) / float64(len(tokens)),
			Confidence: cand.Confidence,
		})
	}

	sortRanked(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// keywordResult wraps KeywordSearch as a full result. Keyword hits are
// lower-trust than vector hits, so the aggregate label is always low.
func (e *Engine) keywordResult(ctx context.Context, query, courseCode string, limit int) (domain.RetrievalResult, error) {
	chunks, err := e.KeywordSearch(ctx, query, courseCode, limit)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	return domain.RetrievalResult{
		Chunks:     chunks,
		Confidence: domain.ConfidenceLow,
	}, nil
}

// sortRanked orders by score descending, breaking ties by chunk
// ordinal ascending so equal-scored neighbors keep document order.
func sortRanked(ranked []domain.RetrievedChunk) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Ordinal < ranked[j].Ordinal
	})
}

// queryTokens lowercases the query and keeps distinct whitespace-split
// tokens longer than two runes, preserving first-seen order.
func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
