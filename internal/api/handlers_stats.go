package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model":       s.gateway.Model(),
		"first_delta": s.gateway.FirstDelta.Snapshot(),
		"total":       s.gateway.Total.Snapshot(),
		"sessions":    s.sessions.Len(),
	})
}
