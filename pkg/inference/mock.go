package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// CapabilitiesOverride overrides default capabilities.
	CapabilitiesOverride *Capabilities

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	// Request is a copy of the Chat request, nil for other methods.
	Request *ChatRequest
	Time    time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return TextResponse("Mock response"), nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// Scripted returns a mock that answers successive Chat calls with the
// given responses in order, failing once they run out.
func Scripted(responses ...*ChatResponse) *Mock {
	var (
		mu   sync.Mutex
		next int
	)
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if next >= len(responses) {
				return nil, WrapError("mock", fmt.Errorf("%w: script exhausted after %d calls", ErrProviderUnavailable, next))
			}
			resp := responses[next]
			next++
			return resp, nil
		},
	}
}

// TextResponse builds an end_turn response with a single text block.
func TextResponse(text string) *ChatResponse {
	return &ChatResponse{
		ID:         "msg_mock",
		Model:      "mock",
		Content:    []ContentBlock{TextBlock(text)},
		StopReason: StopEndTurn,
		Usage:      Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// ToolUseResponse builds a tool_use response calling name with input.
// input is marshalled to JSON; a marshal failure yields {}.
func ToolUseResponse(id, name string, input any) *ChatResponse {
	raw, err := json.Marshal(input)
	if err != nil {
		raw = nil
	}
	return &ChatResponse{
		ID:         "msg_mock",
		Model:      "mock",
		Content:    []ContentBlock{ToolUseBlock(id, name, raw)},
		StopReason: StopToolUse,
		Usage:      Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.record("Chat", req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Capabilities returns mock capabilities.
func (m *Mock) Capabilities() Capabilities {
	if m.CapabilitiesOverride != nil {
		return *m.CapabilitiesOverride
	}
	return Capabilities{
		Chat:  m.ChatFunc != nil,
		Tools: true,
	}
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string, req *ChatRequest) {
	var snapshot *ChatRequest
	if req != nil {
		cp := *req
		cp.Messages = append([]Message(nil), req.Messages...)
		cp.Tools = append([]Tool(nil), req.Tools...)
		snapshot = &cp
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:  method,
		Request: snapshot,
		Time:    time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
