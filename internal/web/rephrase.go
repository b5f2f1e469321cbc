package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jstello/OneInc/internal/sanitize"
)

type rephraseRequest struct {
	Text string `json:"text"`
}

// handleRephrase validates and sanitizes the input, then streams the
// orchestrator's events until the sequence ends or the client goes away.
func (s *Server) handleRephrase(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req rephraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be JSON with a text field")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text input cannot be empty")
		return
	}

	text := sanitize.Clean(req.Text)

	// Sanitization already truncates; this only fires if the cap is ever
	// misconfigured relative to it.
	if utf8.RuneCountInString(text) > sanitize.MaxLen {
		writeError(w, http.StatusBadRequest, "Text input too long (max 1000 characters)")
		return
	}

	sw, err := newSSEWriter(w)
	if err != nil {
		logger.Error().Err(err).Msg("streaming unsupported")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for ev := range s.orchestrator.Run(r.Context(), text) {
		if err := sw.WriteEvent(ev); err != nil {
			// No peer left to report to; returning cancels the request
			// context, which stops the producer and the upstream call.
			logger.Debug().Err(err).Msg("client write failed, dropping stream")
			return
		}
	}
}
