// Package chat holds the chat transcript and runs the send/receive cycle
// against a streaming backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dgallion1/pdfchat/internal/llm"
)

// Message is one transcript entry.
type Message = llm.Message

const (
	RoleUser      = llm.RoleUser
	RoleAssistant = llm.RoleAssistant
)

// Fixed assistant messages appended in place of a reply.
const (
	CredentialPrompt = "Please set your OpenAI API key to start chatting."
	FailureMessage   = "Sorry, something went wrong. Please try again."
)

var (
	// ErrBusy means a send is already in flight on the panel.
	ErrBusy              = errors.New("a message is already being sent")
	ErrMissingCredential = errors.New("api key not set")
)

// Streamer opens a streaming reply for a transcript. The returned body
// yields the reply text as raw bytes.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, apiKey string) (io.ReadCloser, error)
}

// StreamerFunc adapts a function to Streamer.
type StreamerFunc func(ctx context.Context, messages []Message, apiKey string) (io.ReadCloser, error)

func (f StreamerFunc) Stream(ctx context.Context, messages []Message, apiKey string) (io.ReadCloser, error) {
	return f(ctx, messages, apiKey)
}

// Update describes one transcript change. Delta is set only for streamed
// reply text.
type Update struct {
	Index   int
	Message Message
	Delta   string
}

// Panel is a transcript plus the credential used to extend it.
type Panel struct {
	streamer Streamer

	// serverKey lets a send go out with a blank credential.
	serverKey bool

	mu       sync.Mutex
	apiKey   string
	messages []Message
	busy     bool
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithServerCredential sends even when the panel's key is blank, leaving
// the backend to apply its own credential.
func WithServerCredential() PanelOption {
	return func(p *Panel) { p.serverKey = true }
}

func NewPanel(streamer Streamer, apiKey string, opts ...PanelOption) *Panel {
	p := &Panel{streamer: streamer, apiKey: apiKey}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Panel) SetAPIKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiKey = key
}

// HasAPIKey reports whether a non-blank credential is set.
func (p *Panel) HasAPIKey() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.apiKey) != ""
}

// Messages returns a copy of the transcript.
func (p *Panel) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Busy reports whether a send is in flight.
func (p *Panel) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Submit sends trimmed input. Blank input is ignored.
func (p *Panel) Submit(ctx context.Context, input string, onUpdate func(Update)) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	return p.Send(ctx, text, onUpdate)
}

// Send appends text as a user message and streams the reply into a new
// assistant message, calling onUpdate after every change. Failures append
// FailureMessage and are returned; a blank credential appends
// CredentialPrompt without contacting the backend.
func (p *Panel) Send(ctx context.Context, text string, onUpdate func(Update)) error {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return ErrBusy
	}
	p.busy = true
	sent := p.appendLocked(Message{Role: RoleUser, Content: text})
	key := p.apiKey
	if !p.serverKey && strings.TrimSpace(key) == "" {
		prompt := p.appendLocked(Message{Role: RoleAssistant, Content: CredentialPrompt})
		p.busy = false
		p.mu.Unlock()
		onUpdate(sent)
		onUpdate(prompt)
		return ErrMissingCredential
	}
	transcript := make([]Message, len(p.messages))
	copy(transcript, p.messages)
	p.mu.Unlock()
	onUpdate(sent)

	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	body, err := p.streamer.Stream(ctx, transcript, key)
	if err != nil {
		onUpdate(p.append(Message{Role: RoleAssistant, Content: FailureMessage}))
		return fmt.Errorf("open reply stream: %w", err)
	}
	defer body.Close()

	placeholder := p.append(Message{Role: RoleAssistant})
	onUpdate(placeholder)
	idx := placeholder.Index

	var dec decoder
	buf := make([]byte, 4096)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if chunk := dec.decode(buf[:n]); chunk != "" {
				onUpdate(p.extend(idx, chunk))
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			if rest := dec.flush(); rest != "" {
				onUpdate(p.extend(idx, rest))
			}
			onUpdate(p.append(Message{Role: RoleAssistant, Content: FailureMessage}))
			return fmt.Errorf("read reply stream: %w", rerr)
		}
	}
	if rest := dec.flush(); rest != "" {
		onUpdate(p.extend(idx, rest))
	}
	return nil
}

func (p *Panel) append(m Message) Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appendLocked(m)
}

func (p *Panel) appendLocked(m Message) Update {
	p.messages = append(p.messages, m)
	return Update{Index: len(p.messages) - 1, Message: m}
}

func (p *Panel) extend(idx int, delta string) Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[idx].Content += delta
	return Update{Index: idx, Message: p.messages[idx], Delta: delta}
}
