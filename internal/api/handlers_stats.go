package api

import (
	"net/http"
)

func (s *Server) handleReplyStats(w http.ResponseWriter, r *http.Request) {
	if s.reply == nil || s.reply.Stats() == nil {
		jsonError(w, "reply stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": s.reply.Stats().Snapshot(),
	})
}
