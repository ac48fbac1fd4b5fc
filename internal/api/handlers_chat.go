package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/pdfchat/internal/gateway"
	"github.com/dgallion1/pdfchat/internal/llm"
)

const maxChatBody = 1 << 20

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	APIKey   string        `json:"apiKey"`
}

func setStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Content-Type-Options", "nosniff")
}

func flusher(w http.ResponseWriter) func() {
	if f, ok := w.(http.Flusher); ok {
		return f.Flush
	}
	return nil
}

// handleChat relays the model's reply as a chunked plain-text body. Nothing
// is written until the upstream has accepted the request.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stream, err := s.gateway.Open(r.Context(), req.Messages, req.APIKey)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrMissingCredential):
		http.Error(w, "OpenAI API key not configured", http.StatusInternalServerError)
		return
	case errors.Is(err, gateway.ErrEmptyTranscript), errors.Is(err, gateway.ErrInvalidMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		s.log.Error("chat upstream failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	n, err := gateway.Relay(stream, w, flusher(w))
	if err != nil {
		s.log.Warn("chat stream interrupted", "deltas", n, "error", err)
		// Drop the connection so the client sees a truncated body.
		panic(http.ErrAbortHandler)
	}
}
