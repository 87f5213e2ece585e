package stt

import (
	"context"
	"io"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, the transcript is the audio bytes read as text.
	TranscribeFunc func(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method   string
	Filename string
	Bytes    int
	Time     time.Time
}

// NewMock creates a mock whose transcript is the uploaded bytes as text.
func NewMock() *Mock {
	return &Mock{}
}

// WithText returns a mock that always transcribes to text.
func WithText(text string) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
			return &Transcript{Text: text, Raw: map[string]any{"transcript": text}}, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
			return nil, err
		},
	}
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Transcribe reads the audio, records the call and delegates to TranscribeFunc.
func (m *Mock) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, WrapError("mock", err)
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Method:   "Transcribe",
		Filename: opts.Filename,
		Bytes:    len(data),
		Time:     time.Now(),
	})
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, data, opts)
	}
	return &Transcript{Text: string(data)}, nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Transcribe calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
