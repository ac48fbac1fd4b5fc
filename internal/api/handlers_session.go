package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"github.com/dgallion1/pdfchat/internal/popup"
	"github.com/dgallion1/pdfchat/internal/selection"
	"github.com/dgallion1/pdfchat/internal/workspace"
	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if !ok {
			jsonError(w, "session not found", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func session(r *http.Request) *workspace.Session {
	return r.Context().Value(ctxKey{}).(*workspace.Session)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.log.Info("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Snapshot())
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	sess.SetCredential(req.APIKey)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

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
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		jsonError(w, fmt.Sprintf("unsupported file type: %q", ext), http.StatusUnsupportedMediaType)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	sess := session(r)
	info, err := sess.LoadDocument(io.LimitReader(file, s.cfg.MaxUploadBytes), filename)
	if errors.Is(err, pdfdoc.ErrNotPDF) {
		jsonError(w, "file is not a pdf", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		s.log.Warn("document load failed", "session_id", sess.ID, "filename", filename, "error", err)
		jsonError(w, "could not read pdf: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.log.Info("document loaded",
		"session_id", sess.ID,
		"filename", info.Filename,
		"pages", info.NumPages,
		"content_hash", info.ContentHash[:16],
	)
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "invalid page number", http.StatusBadRequest)
		return
	}
	out, err := session(r).PageHTML(n)
	switch {
	case errors.Is(err, workspace.ErrNoDocument):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, out)
}

type popupResponse struct {
	Popup selection.PopupState `json:"popup"`
	View  *popup.View          `json:"view"`
}

func writePopup(w http.ResponseWriter, sess *workspace.Session) {
	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, popupResponse{Popup: snap.Popup, View: snap.PopupView})
}

func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	var ev selection.PointerUp
	if !decodeJSON(w, r, &ev) {
		return
	}
	sess := session(r)
	sess.PointerUp(ev)
	writePopup(w, sess)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var ev selection.Click
	if !decodeJSON(w, r, &ev) {
		return
	}
	sess := session(r)
	sess.Click(ev)
	writePopup(w, sess)
}

func (s *Server) handleKeyDown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	sess.KeyDown(req.Key)
	writePopup(w, sess)
}

func (s *Server) handleClosePopup(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	sess.ClosePopup()
	writePopup(w, sess)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	sess := session(r)
	s.streamReply(w, sess, func(onUpdate func(chat.Update)) error {
		return sess.Invoke(r.Context(), action, onUpdate)
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	s.streamReply(w, sess, func(onUpdate func(chat.Update)) error {
		return sess.Send(r.Context(), req.Text, onUpdate)
	})
}

// streamReply writes reply deltas as they arrive. Headers go out with the
// first delta, so failures before it still get a status code. The
// transcript holds the outcome either way.
func (s *Server) streamReply(w http.ResponseWriter, sess *workspace.Session, run func(func(chat.Update)) error) {
	flush := flusher(w)
	started := false
	err := run(func(u chat.Update) {
		if u.Delta == "" {
			return
		}
		if !started {
			setStreamHeaders(w)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		io.WriteString(w, u.Delta)
		if flush != nil {
			flush()
		}
	})

	if started {
		if err != nil {
			s.log.Warn("reply stream interrupted", "session_id", sess.ID, "error", err)
		}
		return
	}

	switch {
	case err == nil:
		setStreamHeaders(w)
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, chat.ErrBusy), errors.Is(err, popup.ErrHidden):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, popup.ErrUnknownAction):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chat.ErrMissingCredential):
		http.Error(w, chat.CredentialPrompt, http.StatusBadRequest)
	default:
		s.log.Warn("reply failed", "session_id", sess.ID, "error", err)
		http.Error(w, chat.FailureMessage, http.StatusBadGateway)
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := session(r).Messages()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase       string  `json:"phase"`
		MouseX      float64 `json:"mouseX"`
		WindowWidth float64 `json:"windowWidth"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := session(r).Resize(req.Phase, req.MouseX, req.WindowWidth)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
