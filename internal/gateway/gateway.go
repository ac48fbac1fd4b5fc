// Package gateway forwards chat transcripts to a language model and relays
// the streamed text deltas back to the caller.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/llm"
)

var (
	// ErrMissingCredential means neither the request nor the server supplied an API key.
	ErrMissingCredential = errors.New("api key not configured")
	ErrEmptyTranscript   = errors.New("transcript is empty")
	ErrInvalidMessage    = errors.New("invalid message")
)

// ProviderFactory builds a provider bound to one credential.
type ProviderFactory func(apiKey string) (llm.Provider, error)

// Options are the fixed upstream parameters.
type Options struct {
	Model       string
	Instruction string
	Temperature float64
	MaxTokens   int
	// APIKey is the server-side credential used when a request carries none.
	APIKey string
}

// Gateway opens upstream streams and keeps timing stats for them.
type Gateway struct {
	opts        Options
	newProvider ProviderFactory
	log         *slog.Logger

	FirstDelta *llm.Stats
	Total      *llm.Stats
}

func New(opts Options, factory ProviderFactory, log *slog.Logger) *Gateway {
	return &Gateway{
		opts:        opts,
		newProvider: factory,
		log:         log,
		FirstDelta:  llm.NewStats(time.Hour),
		Total:       llm.NewStats(time.Hour),
	}
}

// Model returns the upstream model identifier.
func (g *Gateway) Model() string {
	return g.opts.Model
}

// ServerCredential returns the configured server-side key, if any.
func (g *Gateway) ServerCredential() string {
	return g.opts.APIKey
}

func (g *Gateway) credential(apiKey string) (string, error) {
	if key := strings.TrimSpace(apiKey); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(g.opts.APIKey); key != "" {
		return key, nil
	}
	return "", ErrMissingCredential
}

// Validate checks that a transcript can be forwarded.
func Validate(messages []llm.Message) error {
	if len(messages) == 0 {
		return ErrEmptyTranscript
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidMessage, i, m.Role)
		}
	}
	return nil
}

// Open validates the transcript, resolves the credential and opens the
// upstream stream. Every failure is reported here, before any delta exists.
func (g *Gateway) Open(ctx context.Context, messages []llm.Message, apiKey string) (*Stream, error) {
	if err := Validate(messages); err != nil {
		return nil, err
	}
	key, err := g.credential(apiKey)
	if err != nil {
		return nil, err
	}
	provider, err := g.newProvider(key)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	start := time.Now()
	upstream, err := provider.Stream(ctx, llm.Request{
		Model:       g.opts.Model,
		Instruction: g.opts.Instruction,
		Messages:    messages,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		g.log.Warn("upstream open failed", "provider", provider.Name(), "model", g.opts.Model, "error", err)
		return nil, fmt.Errorf("open upstream: %w", err)
	}
	return &Stream{upstream: upstream, g: g, provider: provider.Name(), started: start}, nil
}

// Pipe opens the upstream and relays it into the returned reader from a
// background goroutine. Closing the reader abandons the stream.
func (g *Gateway) Pipe(ctx context.Context, messages []llm.Message, apiKey string) (io.ReadCloser, error) {
	stream, err := g.Open(ctx, messages, apiKey)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	go func() {
		defer stream.Close()
		_, err := Relay(stream, pw, nil)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Relay copies deltas to w in arrival order, calling flush after each one.
// It returns the number of deltas written; a nil error means the upstream
// finished normally.
func Relay(stream llm.Stream, w io.Writer, flush func()) (int, error) {
	n := 0
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if _, err := io.WriteString(w, delta); err != nil {
			return n, fmt.Errorf("write delta: %w", err)
		}
		n++
		if flush != nil {
			flush()
		}
	}
}

// Stream wraps an upstream stream with timing and logging.
type Stream struct {
	upstream llm.Stream
	g        *Gateway
	provider string
	started  time.Time
	deltas   int
	closed   bool
}

func (s *Stream) Recv() (string, error) {
	d, err := s.upstream.Recv()
	if err == nil {
		if s.deltas == 0 {
			s.g.FirstDelta.Record(time.Since(s.started))
		}
		s.deltas++
	}
	return d, err
}

func (s *Stream) Ignored() int {
	return s.upstream.Ignored()
}

// Close is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	elapsed := time.Since(s.started)
	s.g.Total.Record(elapsed)
	s.g.log.Debug("stream closed",
		"provider", s.provider,
		"deltas", s.deltas,
		"ignored_events", s.upstream.Ignored(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return s.upstream.Close()
}
