package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/pipeline"
)

// documentSummary is the wire shape of a document in listings and
// polls. Text fields are deliberately omitted; chunks carry the
// retrievable content.
type documentSummary struct {
	ID         string            `json:"id"`
	FileName   string            `json:"file_name"`
	MediaType  domain.MediaType  `json:"media_type"`
	Category   domain.Category   `json:"category"`
	CourseCode string            `json:"course_code,omitempty"`
	Status     domain.Status     `json:"status"`
	Confidence domain.Confidence `json:"confidence"`
	ChunkCount int               `json:"chunk_count"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func summarize(d *domain.Document, chunkCount int) documentSummary {
	return documentSummary{
		ID:         d.ID,
		FileName:   d.FileName,
		MediaType:  d.MediaType,
		Category:   d.Category,
		CourseCode: d.CourseCode,
		Status:     d.Status,
		Confidence: d.Confidence,
		ChunkCount: chunkCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// handleUpload accepts a multipart source file and queues it for
// ingestion. The response is 202 with a poll URL; extraction problems
// surface later on the document status, not here. An unrecognized file
// type is accepted and fails during extraction.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	mediaType := resolveMediaType(r.FormValue("media_type"), filename)

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	docID := domain.NewID()
	storedPath := filepath.Join(s.cfg.UploadDir, docID+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(storedPath, data, 0o644); err != nil {
		s.log.Error("store upload failed", "path", storedPath, "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	doc := &domain.Document{
		ID:          docID,
		FileName:    filename,
		StoredPath:  storedPath,
		ContentHash: domain.ContentHashHex(data),
		MediaType:   mediaType,
		Category:    domain.ParseCategory(r.FormValue("category")),
		CourseCode:  domain.NormalizeCourseCode(r.FormValue("course_code")),
		Status:      domain.StatusPending,
		Confidence:  domain.ConfidenceLow,
	}
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		os.Remove(storedPath)
		s.log.Error("save document failed", "error", err)
		jsonError(w, "failed to save document", http.StatusInternalServerError)
		return
	}

	if err := s.runner.Submit(pipeline.Task{DocumentID: docID, Path: storedPath}); err != nil {
		doc.Status = domain.StatusFailed
		if uerr := s.store.UpdateDocument(r.Context(), doc); uerr != nil {
			s.log.Error("mark failed after full queue", "document_id", docID, "error", uerr)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document_id": docID,
		"status":      doc.Status,
		"poll":        "/api/v1/documents/" + docID,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	counts, err := s.store.ChunkCounts(r.Context())
	if err != nil {
		jsonError(w, "failed to count chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summarize(&d, counts[d.ID]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "documentID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	chunks, err := s.store.GetChunks(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to load chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarize(doc, len(chunks)))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "documentID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if doc.StoredPath != "" {
		if err := os.Remove(doc.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("stored file removal failed", "path", doc.StoredPath, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"document_id": docID, "deleted": true})
}

// handleReingest re-runs the pipeline for an already stored document,
// reusing its uploaded file. Prior chunks are replaced, not duplicated.
func (s *Server) handleReingest(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "documentID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	doc.Status = domain.StatusPending
	if err := s.store.UpdateDocument(r.Context(), doc); err != nil {
		jsonError(w, "failed to update document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.runner.Submit(pipeline.Task{DocumentID: doc.ID, Path: doc.StoredPath}); err != nil {
		doc.Status = domain.StatusFailed
		if uerr := s.store.UpdateDocument(r.Context(), doc); uerr != nil {
			s.log.Error("mark failed after full queue", "document_id", docID, "error", uerr)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document_id": doc.ID,
		"status":      doc.Status,
		"poll":        "/api/v1/documents/" + doc.ID,
	})
}

// resolveMediaType prefers the declared type, then the file extension.
// Neither matching is not an upload error; the pipeline fails such
// documents with unsupported media type instead.
func resolveMediaType(declared, filename string) domain.MediaType {
	if declared != "" {
		return domain.MediaType(strings.ToLower(strings.TrimSpace(declared)))
	}
	if mt, ok := domain.MediaTypeForFilename(filename); ok {
		return mt
	}
	return domain.MediaType(strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
