package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studydesk/studydesk/internal/chunker"
	"github.com/studydesk/studydesk/internal/cleanup"
	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/extract"
	"github.com/studydesk/studydesk/internal/pipeline"
	"github.com/studydesk/studydesk/internal/store"
	"github.com/studydesk/studydesk/internal/vector"
)

const embedDim = 8

// Three paragraphs that the 100-rune chunker splits into three chunks.
const lectureText = `Mitochondria are the powerhouse of the cell and synthesize ATP.

The Krebs cycle oxidizes acetyl-CoA to carbon dioxide in the matrix.

Oxidative phosphorylation couples electron transport to ATP synthesis.`

// fakeExtractor returns scripted results; errs are consumed before
// text is returned.
type fakeExtractor struct {
	text        string
	errs        []error
	reliability domain.Confidence
	calls       int
}

func (f *fakeExtractor) Extract(context.Context, string) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.text, nil
}

func (f *fakeExtractor) Reliability() domain.Confidence { return f.reliability }

type panickyExtractor struct{}

func (panickyExtractor) Extract(context.Context, string) (string, error) {
	panic("extractor exploded")
}

func (panickyExtractor) Reliability() domain.Confidence { return domain.ConfidenceMedium }

type fakeCleaner struct {
	out   string
	err   error
	calls int
}

func (f *fakeCleaner) Clean(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

// flakyEmbedder fails for segments containing failOn and delegates the
// rest.
type flakyEmbedder struct {
	inner  vector.Embedder
	failOn string
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, f.failOn) {
		return nil, errors.New("vectorizer unavailable")
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registryWith(mt domain.MediaType, e extract.Extractor) *extract.Registry {
	reg := extract.NewRegistry()
	reg.Register(mt, e)
	return reg
}

func newIngestor(t *testing.T, reg *extract.Registry, cleaner cleanup.Cleaner, embedder vector.Embedder) (*pipeline.Ingestor, store.Store) {
	t.Helper()
	if embedder == nil {
		embedder = vector.NewSurrogate(embedDim)
	}
	s := store.NewMemory(embedDim)
	ch, err := chunker.New(100, 0)
	require.NoError(t, err)
	return pipeline.NewIngestor(s, reg, ch, embedder, cleaner, 2, 2, testLogger()), s
}

func saveDoc(t *testing.T, s store.Store, mt domain.MediaType) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:         domain.NewID(),
		FileName:   "upload." + string(mt),
		MediaType:  mt,
		Category:   domain.CategoryHandout,
		CourseCode: "BIO101",
		Status:     domain.StatusPending,
		Confidence: domain.ConfidenceLow,
	}
	require.NoError(t, s.SaveDocument(context.Background(), doc))
	return doc
}

func TestRun_IngestsDocumentEndToEnd(t *testing.T) {
	reg := registryWith(domain.MediaText, &fakeExtractor{text: lectureText, reliability: domain.ConfidenceMedium})
	ing, s := newIngestor(t, reg, nil, nil)
	doc := saveDoc(t, s, domain.MediaText)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/upload.txt"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
	assert.Equal(t, lectureText, got.RawText)
	assert.Empty(t, got.CleanedText)

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal, "ordinals must be dense and ordered")
		assert.NotEmpty(t, ch.Content)
		assert.Len(t, ch.Vector, embedDim)
	}
}

func TestRun_UnsupportedMediaTypeFails(t *testing.T) {
	ing, s := newIngestor(t, extract.NewRegistry(), nil, nil)
	doc := saveDoc(t, s, domain.MediaPDF)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/upload.pdf"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)
}

func TestRun_PermanentExtractionErrorFailsWithoutRetry(t *testing.T) {
	ext := &fakeExtractor{errs: []error{errors.New("file corrupted"), errors.New("file corrupted")}}
	ing, s := newIngestor(t, registryWith(domain.MediaPDF, ext), nil, nil)
	doc := saveDoc(t, s, domain.MediaPDF)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/upload.pdf"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, 1, ext.calls, "permanent errors must not be retried")
}

func TestRun_RetryableExtractionRecovers(t *testing.T) {
	throttled := &domain.RetryableError{StatusCode: 429, Message: "slow down", RetryAfter: time.Millisecond}
	ext := &fakeExtractor{
		text:        lectureText,
		errs:        []error{throttled, throttled},
		reliability: domain.ConfidenceMedium,
	}
	ing, s := newIngestor(t, registryWith(domain.MediaImage, ext), nil, nil)
	doc := saveDoc(t, s, domain.MediaImage)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/scan.png"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, 3, ext.calls, "expected two retries before success")
}

func TestRun_RetryableExtractionExhaustsRetries(t *testing.T) {
	throttled := &domain.RetryableError{StatusCode: 503, Message: "down", RetryAfter: time.Millisecond}
	ext := &fakeExtractor{errs: []error{throttled, throttled, throttled, throttled}}
	ing, s := newIngestor(t, registryWith(domain.MediaImage, ext), nil, nil)
	doc := saveDoc(t, s, domain.MediaImage)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/scan.png"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, 3, ext.calls, "initial attempt plus two retries")
}

func TestRun_EmptyExtractionCompletesWithZeroChunks(t *testing.T) {
	ext := &fakeExtractor{text: "   \n\n  ", reliability: domain.ConfidenceMedium}
	ing, s := newIngestor(t, registryWith(domain.MediaPDF, ext), nil, nil)
	doc := saveDoc(t, s, domain.MediaPDF)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/blank.pdf"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status, "empty text is a valid outcome, not a failure")
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRun_CleanupUpgradesLowConfidence(t *testing.T) {
	ext := &fakeExtractor{text: "n0isy 0cr 0utput from a scanned page", reliability: domain.ConfidenceLow}
	cleaner := &fakeCleaner{out: "noisy ocr output from a scanned page"}
	ing, s := newIngestor(t, registryWith(domain.MediaImage, ext), cleaner, nil)
	doc := saveDoc(t, s, domain.MediaImage)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/scan.png"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, domain.ConfidenceMedium, got.Confidence, "successful cleanup upgrades confidence")
	assert.Equal(t, cleaner.out, got.CleanedText)
	assert.Equal(t, ext.text, got.RawText, "raw text is kept alongside the cleaned version")

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, cleaner.out, chunks[0].Content, "chunks are cut from the cleaned text")
}

func TestRun_CleanupFailureKeepsRawText(t *testing.T) {
	ext := &fakeExtractor{text: "n0isy 0cr 0utput from a scanned page", reliability: domain.ConfidenceLow}
	cleaner := &fakeCleaner{err: errors.New("model refused")}
	ing, s := newIngestor(t, registryWith(domain.MediaImage, ext), cleaner, nil)
	doc := saveDoc(t, s, domain.MediaImage)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/scan.png"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status, "cleanup failure is never fatal")
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)
	assert.Empty(t, got.CleanedText)

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ext.text, chunks[0].Content)
}

func TestRun_MediumConfidenceSkipsCleanup(t *testing.T) {
	ext := &fakeExtractor{text: lectureText, reliability: domain.ConfidenceMedium}
	cleaner := &fakeCleaner{out: "should never be used"}
	ing, s := newIngestor(t, registryWith(domain.MediaText, ext), cleaner, nil)
	doc := saveDoc(t, s, domain.MediaText)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/notes.txt"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Empty(t, got.CleanedText)
	assert.Zero(t, cleaner.calls, "cleanup only runs for low-confidence extractions")
}

func TestRun_PartialEmbeddingFailureKeepsChunk(t *testing.T) {
	ext := &fakeExtractor{text: lectureText, reliability: domain.ConfidenceMedium}
	embedder := &flakyEmbedder{inner: vector.NewSurrogate(embedDim), failOn: "Krebs"}
	ing, s := newIngestor(t, registryWith(domain.MediaText, ext), nil, embedder)
	doc := saveDoc(t, s, domain.MediaText)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/notes.txt"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Nil(t, chunks[1].Vector, "failed chunk keeps a nil vector")
	assert.Len(t, chunks[0].Vector, embedDim)
	assert.Len(t, chunks[2].Vector, embedDim)
}

func TestRun_ReingestReplacesChunks(t *testing.T) {
	ext := &fakeExtractor{text: lectureText, reliability: domain.ConfidenceMedium}
	ing, s := newIngestor(t, registryWith(domain.MediaText, ext), nil, nil)
	doc := saveDoc(t, s, domain.MediaText)
	task := pipeline.Task{DocumentID: doc.ID, Path: "/tmp/notes.txt"}

	ing.Run(context.Background(), task)

	// Second pass extracts one short paragraph.
	ext.text = "A single short revision note."
	ing.Run(context.Background(), task)

	chunks, err := s.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "re-ingestion must replace chunks, not append")
	assert.Equal(t, "A single short revision note.", chunks[0].Content)
}

func TestRun_PanicMarksDocumentFailed(t *testing.T) {
	ing, s := newIngestor(t, registryWith(domain.MediaPDF, panickyExtractor{}), nil, nil)
	doc := saveDoc(t, s, domain.MediaPDF)

	ing.Run(context.Background(), pipeline.Task{DocumentID: doc.ID, Path: "/tmp/upload.pdf"})

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)
}

func TestRun_MissingDocumentIsANoOp(t *testing.T) {
	ing, _ := newIngestor(t, extract.NewRegistry(), nil, nil)

	// Must not panic or create anything.
	ing.Run(context.Background(), pipeline.Task{DocumentID: "nonexistent", Path: "/tmp/x"})
}

func TestBackoff_HonorsRetryAfter(t *testing.T) {
	err := &domain.RetryableError{StatusCode: 429, RetryAfter: 7 * time.Second}
	if got := pipeline.Backoff(0, err); got != 7*time.Second {
		t.Errorf("expected 7s from Retry-After, got %v", got)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	plain := errors.New("transient")
	for attempt := 0; attempt < 10; attempt++ {
		got := pipeline.Backoff(attempt, plain)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if got < base || got > base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v]", attempt, got, base, base+base/2)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &domain.RetryableError{StatusCode: 503})
	if !pipeline.IsRetryable(wrapped) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
	if pipeline.IsRetryable(errors.New("plain")) {
		t.Error("expected plain error to be permanent")
	}
}
