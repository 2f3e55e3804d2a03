package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgallion1/kbchat/internal/render"
	"github.com/dgallion1/kbchat/internal/reply"
)

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Reply    string      `json:"reply"`
	HTML     string      `json:"html"`
	Shape    reply.Shape `json:"shape"`
	Fallback bool        `json:"fallback"`
}

// handleChat forwards a prompt to the reply service and returns the reply
// both as markdown and as sanitized HTML. Reply-service failures still
// answer 200 with the fallback text the user should see.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxPromptBytes
	if limit <= 0 {
		limit = 16384
	}
	// Room for the JSON envelope and escaping.
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+1024)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("prompt exceeds max size (%d bytes)", limit), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if int64(len(req.Prompt)) > limit {
		jsonError(w, fmt.Sprintf("prompt exceeds max size (%d bytes)", limit), http.StatusRequestEntityTooLarge)
		return
	}

	rep, err := s.reply.Ask(r.Context(), req.Prompt)
	if errors.Is(err, reply.ErrEmptyPrompt) {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Warn("reply service failed", "error", err, "fallback", rep.Fallback)
	}

	html, err := render.Render(rep.Text)
	if err != nil {
		s.log.Error("failed to render reply", "error", err)
		html = ""
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:    rep.Text,
		HTML:     html,
		Shape:    rep.Shape,
		Fallback: rep.Fallback,
	})
}
