// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"io"
	"sync"

	"github.com/dgallion1/pdfchat/internal/llm"
)

// Provider replays Deltas for every stream it opens and records requests.
type Provider struct {
	mu sync.Mutex

	Deltas []string
	// Ignored is reported by every stream.
	Ignored int
	// OpenErr fails Stream before any delta.
	OpenErr error
	// RecvErr is returned after all Deltas instead of io.EOF.
	RecvErr error

	Requests []llm.Request
	Keys     []string
}

// Factory returns a gateway-style factory that records the credential.
func (p *Provider) Factory() func(apiKey string) (llm.Provider, error) {
	return func(apiKey string) (llm.Provider, error) {
		p.mu.Lock()
		p.Keys = append(p.Keys, apiKey)
		p.mu.Unlock()
		return p, nil
	}
}

func (p *Provider) Name() string {
	return "fake"
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	deltas := append([]string(nil), p.Deltas...)
	return &stream{deltas: deltas, err: p.RecvErr, ignored: p.Ignored}, nil
}

// Calls returns the number of streams opened.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

type stream struct {
	deltas  []string
	err     error
	ignored int
	closed  bool
}

func (s *stream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}

func (s *stream) Ignored() int {
	return s.ignored
}
