// Package pipeline moves uploaded documents through extraction,
// optional AI cleanup, chunking, and vectorization. Ingestion is
// fire-and-forget: every outcome, including panics, lands the document
// on a terminal status instead of surfacing an error to the uploader.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studydesk/studydesk/internal/chunker"
	"github.com/studydesk/studydesk/internal/cleanup"
	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/extract"
	"github.com/studydesk/studydesk/internal/store"
	"github.com/studydesk/studydesk/internal/vector"
)

// Ingestor processes one document at a time. Safe for concurrent use
// across documents; the store is the only shared state.
type Ingestor struct {
	store    store.Store
	registry *extract.Registry
	chunker  *chunker.Chunker
	embedder vector.Embedder
	// cleaner is nil when no cleanup service is configured; the
	// cleaning step is skipped entirely then.
	cleaner     cleanup.Cleaner
	concurrency int
	maxRetries  int
	log         *slog.Logger
}

func NewIngestor(s store.Store, registry *extract.Registry, ch *chunker.Chunker, embedder vector.Embedder, cleaner cleanup.Cleaner, concurrency, maxRetries int, log *slog.Logger) *Ingestor {
	if concurrency <= 0 {
		concurrency = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:       s,
		registry:    registry,
		chunker:     ch,
		embedder:    embedder,
		cleaner:     cleaner,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		log:         log,
	}
}

// Run executes the full pipeline for one task and always leaves the
// document on a terminal status. Re-running for the same document
// replaces its chunks, so re-ingestion never duplicates rows.
func (in *Ingestor) Run(ctx context.Context, task Task) {
	log := in.log.With("document_id", task.DocumentID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			in.markFailed(ctx, task.DocumentID, fmt.Errorf("panic: %v", r))
		}
	}()

	doc, err := in.store.GetDocument(ctx, task.DocumentID)
	if err != nil {
		log.Error("load document failed", "error", err)
		return
	}

	// Phase 1: extract raw text.
	doc.Status = domain.StatusExtracting
	if err := in.store.UpdateDocument(ctx, doc); err != nil {
		log.Error("status update failed", "status", doc.Status, "error", err)
		return
	}

	extractor, err := in.registry.For(doc.MediaType)
	if err != nil {
		log.Error("no extractor registered", "media_type", doc.MediaType, "error", err)
		in.markFailed(ctx, doc.ID, err)
		return
	}

	raw, err := in.withRetry(ctx, log, "extraction", func() (string, error) {
		return extractor.Extract(ctx, task.Path)
	})
	if err != nil {
		log.Error("extraction failed", "error", err)
		in.markFailed(ctx, doc.ID, err)
		return
	}

	doc.RawText = raw
	doc.CleanedText = ""
	doc.Confidence = extractor.Reliability()

	// A document with no extractable text completes with zero chunks;
	// that is a terminal outcome, not a failure.
	if strings.TrimSpace(raw) == "" {
		log.Info("no extractable text")
		doc.Confidence = domain.ConfidenceLow
		if err := in.store.ReplaceChunks(ctx, doc.ID, nil); err != nil {
			log.Error("clear chunks failed", "error", err)
			in.markFailed(ctx, doc.ID, err)
			return
		}
		doc.Status = domain.StatusDone
		if err := in.store.UpdateDocument(ctx, doc); err != nil {
			log.Error("final update failed", "error", err)
		}
		return
	}

	// Phase 2: clean up lossy extractions when a cleaner is available.
	// Cleanup failure is never fatal; the document keeps its raw text.
	if doc.Confidence == domain.ConfidenceLow && in.cleaner != nil {
		doc.Status = domain.StatusCleaning
		if err := in.store.UpdateDocument(ctx, doc); err != nil {
			log.Error("status update failed", "status", doc.Status, "error", err)
			return
		}

		cleaned, err := in.withRetry(ctx, log, "cleanup", func() (string, error) {
			return in.cleaner.Clean(ctx, doc.RawText)
		})
		if err != nil {
			log.Warn("cleanup failed, keeping raw text", "error", err)
		} else {
			doc.CleanedText = cleaned
			doc.Confidence = domain.ConfidenceMedium
		}
	}

	// Phase 3: chunk.
	doc.Status = domain.StatusChunking
	if err := in.store.UpdateDocument(ctx, doc); err != nil {
		log.Error("status update failed", "status", doc.Status, "error", err)
		return
	}
	segments := in.chunker.Chunk(doc.EffectiveText())
	log.Info("chunked document", "chunks", len(segments))

	// Phase 4: vectorize and persist.
	doc.Status = domain.StatusEmbedding
	if err := in.store.UpdateDocument(ctx, doc); err != nil {
		log.Error("status update failed", "status", doc.Status, "error", err)
		return
	}
	chunks := in.embedAll(ctx, log, doc.ID, segments)

	if err := in.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		log.Error("persist chunks failed", "error", err)
		in.markFailed(ctx, doc.ID, err)
		return
	}

	doc.Status = domain.StatusDone
	if err := in.store.UpdateDocument(ctx, doc); err != nil {
		log.Error("final update failed", "error", err)
		return
	}
	log.Info("document ingested", "chunks", len(chunks), "confidence", doc.Confidence)
}

// withRetry runs fn, retrying transient failures up to maxRetries
// times. Permanent errors and exhausted retries return the last error.
func (in *Ingestor) withRetry(ctx context.Context, log *slog.Logger, op string, fn func() (string, error)) (string, error) {
	for attempt := 0; ; attempt++ {
		out, err := fn()
		if err == nil || !IsRetryable(err) || attempt >= in.maxRetries {
			return out, err
		}
		wait := Backoff(attempt, err)
		log.Warn("retrying "+op, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// embedAll vectorizes segments with bounded fan-out. Results are
// written by index so persisted ordinals always match generation order.
// A per-chunk embedding failure leaves that chunk's vector nil and the
// rest proceed.
func (in *Ingestor) embedAll(ctx context.Context, log *slog.Logger, docID string, segments []string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(segments))
	sem := make(chan struct{}, in.concurrency)
	var wg sync.WaitGroup

	for i, seg := range segments {
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Ordinal:    i,
			Content:    seg,
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, seg string) {
			defer wg.Done()
			defer func() { <-sem }()
			vec, err := in.embedder.Embed(ctx, seg)
			if err != nil {
				log.Warn("chunk vectorization failed", "ordinal", i, "error", err)
				return
			}
			chunks[i].Vector = vec
		}(i, seg)
	}
	wg.Wait()

	return chunks
}

// markFailed moves a document to failed with low confidence. Text
// fields keep their last successfully persisted values.
func (in *Ingestor) markFailed(ctx context.Context, docID string, cause error) {
	log := in.log.With("document_id", docID)

	doc, err := in.store.GetDocument(ctx, docID)
	if err != nil {
		log.Error("mark failed: load document", "error", err)
		return
	}
	doc.Status = domain.StatusFailed
	doc.Confidence = domain.ConfidenceLow
	if err := in.store.UpdateDocument(ctx, doc); err != nil {
		log.Error("mark failed: update document", "error", err)
		return
	}
	log.Info("document failed", "error", cause)
}
