package api

import (
	"encoding/json"
	"net/http"
)

// handleLLMStats reports rolling latency and token usage for the chat model.
func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil || s.llm.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := s.llm.Stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":        s.llm.Model(),
		"sample_count": snap.Count,
		"latency":      snap,
		"total_tokens": snap.PromptTokens + snap.CompletionTokens,
	})
}
