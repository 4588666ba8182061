package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	docCount, err := s.store.CountDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to count documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	chunkCounts, err := s.store.ChunkCounts(r.Context())
	if err != nil {
		jsonError(w, "failed to count chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	chunkTotal := 0
	for _, n := range chunkCounts {
		chunkTotal += n
	}

	resp := map[string]any{
		"documents":   docCount,
		"chunks":      chunkTotal,
		"queue_depth": s.runner.QueueDepth(),
	}
	if s.cleaner != nil {
		resp["cleanup"] = map[string]any{
			"model": s.cleaner.Model(),
			"stats": s.cleaner.Stats.Snapshot(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
