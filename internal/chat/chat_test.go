package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// chunkReader returns one chunk per Read, then err (io.EOF if nil).
type chunkReader struct {
	chunks [][]byte
	err    error
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type fakeStreamer struct {
	chunks  []string
	openErr error
	readErr error

	calls      int
	transcript []Message
	key        string
	body       *chunkReader
}

func (f *fakeStreamer) Stream(ctx context.Context, messages []Message, apiKey string) (io.ReadCloser, error) {
	f.calls++
	f.transcript = messages
	f.key = apiKey
	if f.openErr != nil {
		return nil, f.openErr
	}
	var chunks [][]byte
	for _, c := range f.chunks {
		chunks = append(chunks, []byte(c))
	}
	f.body = &chunkReader{chunks: chunks, err: f.readErr}
	return f.body, nil
}

func TestSend_ConcatenatesChunksInOrder(t *testing.T) {
	chunkSets := [][]string{
		{"Hello"},
		{"# Title\n", "Some ", "**bold**", " text."},
		{"a", "b", "c", "d", "e", "f", "g"},
	}
	for _, chunks := range chunkSets {
		s := &fakeStreamer{chunks: chunks}
		p := NewPanel(s, "sk-test")

		var rendered []string
		err := p.Send(context.Background(), "hi", func(u Update) {
			rendered = append(rendered, u.Message.Content)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		msgs := p.Messages()
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		want := strings.Join(chunks, "")
		if msgs[1].Role != RoleAssistant || msgs[1].Content != want {
			t.Errorf("expected assistant %q, got %+v", want, msgs[1])
		}
		// user append, placeholder, one per chunk
		if len(rendered) != 2+len(chunks) {
			t.Errorf("expected %d updates, got %d", 2+len(chunks), len(rendered))
		}
		if !s.body.closed {
			t.Error("expected body closed")
		}
	}
}

func TestSend_SendsFullTranscript(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"first reply"}}
	p := NewPanel(s, "sk-test")

	if err := p.Send(context.Background(), "one", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.chunks = []string{"second reply"}
	if err := p.Send(context.Background(), "two", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "first reply"},
		{Role: RoleUser, Content: "two"},
	}
	if len(s.transcript) != len(want) {
		t.Fatalf("expected transcript of %d, got %+v", len(want), s.transcript)
	}
	for i := range want {
		if s.transcript[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], s.transcript[i])
		}
	}
	if s.key != "sk-test" {
		t.Errorf("expected credential forwarded, got %q", s.key)
	}
}

func TestSend_BlankCredentialNeverCallsBackend(t *testing.T) {
	for _, key := range []string{"", " ", "\t \n"} {
		s := &fakeStreamer{chunks: []string{"x"}}
		p := NewPanel(s, key)

		err := p.Send(context.Background(), "hello", nil)
		if !errors.Is(err, ErrMissingCredential) {
			t.Errorf("key %q: expected ErrMissingCredential, got %v", key, err)
		}
		if s.calls != 0 {
			t.Errorf("key %q: expected no backend call, got %d", key, s.calls)
		}
		msgs := p.Messages()
		if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != CredentialPrompt {
			t.Errorf("key %q: expected user message then one advisory, got %+v", key, msgs)
		}
		if p.Busy() {
			t.Errorf("key %q: expected panel idle", key)
		}
	}
}

func TestSend_OpenFailureAppendsStaticMessage(t *testing.T) {
	s := &fakeStreamer{openErr: &StatusError{StatusCode: 500, Body: "Server error"}}
	p := NewPanel(s, "sk-test")

	err := p.Send(context.Background(), "hello", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	msgs := p.Messages()
	if len(msgs) != 2 || msgs[1].Content != FailureMessage {
		t.Errorf("expected single failure message, got %+v", msgs)
	}
}

func TestSend_ReadErrorKeepsPartialReply(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"partial ", "answer"}, readErr: errors.New("connection reset")}
	p := NewPanel(s, "sk-test")

	if err := p.Send(context.Background(), "hello", nil); err == nil {
		t.Fatal("expected error")
	}
	msgs := p.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %+v", msgs)
	}
	if msgs[1].Content != "partial answer" {
		t.Errorf("expected partial reply kept, got %q", msgs[1].Content)
	}
	if msgs[2].Content != FailureMessage {
		t.Errorf("expected failure message, got %q", msgs[2].Content)
	}
}

func TestSend_SplitMultibyteRunes(t *testing.T) {
	text := "naïve café ☕ 你好"
	b := []byte(text)
	var chunks []string
	for i := 0; i < len(b); i += 2 {
		end := min(i+2, len(b))
		chunks = append(chunks, string(b[i:end]))
	}
	s := &fakeStreamer{chunks: chunks}
	p := NewPanel(s, "sk-test")

	var deltas []string
	err := p.Send(context.Background(), "hi", func(u Update) {
		if u.Delta != "" {
			deltas = append(deltas, u.Delta)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Messages()[1].Content; got != text {
		t.Errorf("expected %q, got %q", text, got)
	}
	for _, d := range deltas {
		if strings.ContainsRune(d, '�') {
			t.Errorf("delta %q contains a replacement rune", d)
		}
	}
}

func TestSend_Busy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := StreamerFunc(func(ctx context.Context, messages []Message, apiKey string) (io.ReadCloser, error) {
		close(started)
		<-release
		return io.NopCloser(strings.NewReader("done")), nil
	})
	p := NewPanel(s, "sk-test")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Send(context.Background(), "first", nil)
	}()
	<-started

	if err := p.Send(context.Background(), "second", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	close(release)
	wg.Wait()

	msgs := p.Messages()
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "done" {
		t.Errorf("expected busy send to leave transcript untouched, got %+v", msgs)
	}
}

func TestSubmit_TrimsAndIgnoresBlank(t *testing.T) {
	s := &fakeStreamer{chunks: []string{"ok"}}
	p := NewPanel(s, "sk-test")

	if err := p.Submit(context.Background(), "   \n", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.calls != 0 || len(p.Messages()) != 0 {
		t.Fatal("expected blank input ignored")
	}

	if err := p.Submit(context.Background(), "  what is this?  ", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Messages()[0].Content; got != "what is this?" {
		t.Errorf("expected trimmed input, got %q", got)
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   string
	}{
		{"ascii", [][]byte{[]byte("ab"), []byte("cd")}, "abcd"},
		{"split two-byte", [][]byte{{0xc3}, {0xa9}}, "é"},
		{"split four-byte", [][]byte{{0xf0, 0x9f}, {0x98}, {0x80, 'x'}}, "😀x"},
		{"truncated at end", [][]byte{[]byte("a"), {0xe2, 0x82}}, "a�"},
		{"invalid bytes", [][]byte{{'a', 0xff, 'b'}}, "a�b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d decoder
			var out strings.Builder
			for _, c := range tt.chunks {
				out.WriteString(d.decode(c))
			}
			out.WriteString(d.flush())
			if out.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, out.String())
			}
		})
	}
}
