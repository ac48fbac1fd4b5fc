// Package workspace owns the state of one browser workspace: the loaded
// PDF, the chat transcript, the selection popup and the panel layout.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/layout"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"github.com/dgallion1/pdfchat/internal/popup"
	"github.com/dgallion1/pdfchat/internal/render"
	"github.com/dgallion1/pdfchat/internal/selection"
	"golang.org/x/net/html"
)

var (
	ErrNoDocument   = errors.New("no document loaded")
	ErrUnknownPhase = errors.New("unknown resize phase")
)

// Options are shared by every session in a store.
type Options struct {
	Streamer  chat.Streamer
	Parser    *pdfdoc.Parser
	Markdown  *render.Markdown
	PageWidth float64
	Layout    layout.Options
	// Credential seeds each session's API key.
	Credential string
}

// Validate checks that every collaborator is set and the layout is sane.
func (o Options) Validate() error {
	switch {
	case o.Streamer == nil:
		return errors.New("workspace: streamer is required")
	case o.Parser == nil:
		return errors.New("workspace: parser is required")
	case o.Markdown == nil:
		return errors.New("workspace: markdown renderer is required")
	case o.PageWidth <= 0:
		return fmt.Errorf("workspace: page width must be positive, got %v", o.PageWidth)
	}
	if err := o.Layout.Validate(); err != nil {
		return fmt.Errorf("workspace: layout: %w", err)
	}
	return nil
}

// Session is one workspace. Its methods are safe for concurrent use; UI
// state changes are serialized, while a reply streams without holding the
// session lock.
type Session struct {
	ID        string
	CreatedAt time.Time

	opts Options

	mu        sync.Mutex
	doc       *pdfdoc.Document
	coord     *selection.Coordinator
	popup     *popup.Popup
	layout    *layout.Panel
	updatedAt time.Time

	panel *chat.Panel
}

func newSession(id string, opts Options) *Session {
	now := time.Now()
	coord := selection.NewCoordinator()
	return &Session{
		ID:        id,
		CreatedAt: now,
		opts:      opts,
		coord:     coord,
		popup:     popup.New(coord),
		layout:    layout.NewPanel(opts.Layout),
		panel:     chat.NewPanel(opts.Streamer, opts.Credential),
		updatedAt: now,
	}
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func (s *Session) busy() bool {
	return s.panel.Busy()
}

// LoadDocument parses a PDF and makes it the session's document. The popup
// is closed since its anchor belonged to the previous document.
func (s *Session) LoadDocument(r io.Reader, filename string) (pdfdoc.Info, error) {
	doc, err := s.opts.Parser.Parse(r, filename)
	if err != nil {
		return pdfdoc.Info{}, fmt.Errorf("load %s: %w", filename, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.coord.Close()
	s.touch()
	return doc.Info(), nil
}

func (s *Session) Document() (*pdfdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// PageHTML renders the text layer of 1-based page n.
func (s *Session) PageHTML(n int) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}
	page, err := doc.Page(n)
	if err != nil {
		return "", err
	}
	return render.TextLayer(page, s.opts.PageWidth)
}

func (s *Session) SetCredential(key string) {
	s.panel.SetAPIKey(key)
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
}

func (s *Session) PointerUp(ev selection.PointerUp) selection.PopupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.coord.PointerUp(ev)
}

func (s *Session) Click(ev selection.Click) selection.PopupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.coord.Click(ev)
}

func (s *Session) KeyDown(key string) selection.PopupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.coord.KeyDown(key)
}

func (s *Session) ClosePopup() selection.PopupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.coord.Close()
}

// Invoke runs a popup action over the captured text and streams the reply.
// The popup closes once the chat accepts the prompt; a rejected send (for
// example ErrBusy) leaves it open with its text.
func (s *Session) Invoke(ctx context.Context, action string, onUpdate func(chat.Update)) error {
	s.mu.Lock()
	prompt, err := s.popup.Pending(action)
	s.touch()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	accepted := false
	return s.panel.Send(ctx, prompt, func(u chat.Update) {
		if !accepted {
			accepted = true
			s.mu.Lock()
			s.coord.Close()
			s.mu.Unlock()
		}
		if onUpdate != nil {
			onUpdate(u)
		}
	})
}

// Send submits freeform chat input. Blank input is ignored.
func (s *Session) Send(ctx context.Context, text string, onUpdate func(chat.Update)) error {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	return s.panel.Submit(ctx, text, onUpdate)
}

// RenderedMessage is a transcript entry with its display HTML.
type RenderedMessage struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
	HTML    string   `json:"html"`
}

// Messages returns the transcript. Assistant replies are rendered as
// markdown; user messages are shown as escaped plain text.
func (s *Session) Messages() ([]RenderedMessage, error) {
	msgs := s.panel.Messages()
	out := make([]RenderedMessage, 0, len(msgs))
	for _, m := range msgs {
		rm := RenderedMessage{Role: m.Role, Content: m.Content}
		if m.Role == chat.RoleAssistant {
			h, err := s.opts.Markdown.Render(m.Content)
			if err != nil {
				return nil, err
			}
			rm.HTML = h
		} else {
			rm.HTML = "<p>" + html.EscapeString(m.Content) + "</p>"
		}
		out = append(out, rm)
	}
	return out, nil
}

// Resize applies one phase of a divider drag: begin, move or end.
func (s *Session) Resize(phase string, mouseX, windowWidth float64) (layout.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	switch phase {
	case "begin":
		return s.layout.Begin(), nil
	case "move":
		return s.layout.Move(mouseX, windowWidth), nil
	case "end":
		return s.layout.End(), nil
	default:
		return s.layout.State(), fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
}

// Snapshot is the JSON view of a session.
type Snapshot struct {
	ID            string               `json:"id"`
	Document      *pdfdoc.Info         `json:"document"`
	Popup         selection.PopupState `json:"popup"`
	PopupView     *popup.View          `json:"popupView"`
	Layout        layout.State         `json:"layout"`
	HasCredential bool                 `json:"hasCredential"`
	Busy          bool                 `json:"busy"`
	Messages      int                  `json:"messages"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:            s.ID,
		Popup:         s.coord.State(),
		PopupView:     s.popup.View(),
		Layout:        s.layout.State(),
		HasCredential: s.panel.HasAPIKey(),
		Busy:          s.panel.Busy(),
		Messages:      len(s.panel.Messages()),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.updatedAt,
	}
	if s.doc != nil {
		info := s.doc.Info()
		snap.Document = &info
	}
	return snap
}
