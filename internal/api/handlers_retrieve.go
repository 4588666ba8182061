package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/studydesk/studydesk/internal/domain"
)

type retrieveRequest struct {
	Query      string `json:"query"`
	CourseCode string `json:"course_code"`
	TopK       int    `json:"top_k"`
}

// handleRetrieve answers a query with ranked chunks. Unlike ingestion
// this is a synchronous read, so store failures surface as 500s.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := s.engine.Retrieve(r.Context(), req.Query, domain.NormalizeCourseCode(req.CourseCode), req.TopK)
	if err != nil {
		jsonError(w, "retrieval failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
