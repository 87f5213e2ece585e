// Package inference provides a unified interface for conversational models.
//
// The package speaks the Anthropic Messages wire shape: a system prompt,
// alternating user/assistant turns made of content blocks, optional tools,
// and a response of content blocks with a stop reason. Both the direct
// chat path and the research agent's tool loop run through Provider.
//
// Example usage:
//
//	client, _ := inference.NewAnthropic(
//	    inference.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	    inference.WithModel("claude-3-haiku-20240307"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    System: "You are helpful.",
//	    Messages: []inference.Message{
//	        inference.NewUserMessage("Hello!"),
//	    },
//	})
//	text, _ := resp.FirstText()
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teslashibe/sakshi/pkg/probe"
)

// Provider is the unified inference interface.
// All implementations must satisfy this interface.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Capabilities describes what features a provider supports.
type Capabilities struct {
	Chat  bool // Supports chat completions
	Tools bool // Supports tool calling
}

// Tool choice modes.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceNone = "none"
)

// ChatRequest for chat completions.
type ChatRequest struct {
	// System is the system prompt, sent outside the message list.
	System string

	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-1.0). Zero uses the provider default.
	Temperature float64

	// Stop sequences that halt generation.
	Stop []string

	// Tools available for the model to call.
	Tools []Tool

	// ToolChoice is "auto", "any", "none", or the name of a single tool
	// the model must call.
	ToolChoice string
}

// Stop reasons reported by the model.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopSequence  = "stop_sequence"
)

// ChatResponse from chat completion.
type ChatResponse struct {
	// ID is the provider's message ID.
	ID string

	// Model used for generation.
	Model string

	// Content is the assistant's response as content blocks.
	Content []ContentBlock

	// StopReason indicates why generation stopped.
	StopReason string

	// Usage tracks token consumption.
	Usage Usage

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64

	// Raw is the undecoded response body, when available.
	Raw json.RawMessage
}

// FirstText returns the text of the first non-empty text block.
func (r *ChatResponse) FirstText() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, b := range r.Content {
		if b.Type == BlockText && b.Text != "" {
			return b.Text, true
		}
	}
	return "", false
}

// Text joins every text block with newlines.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, b := range r.Content {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool_use blocks in order.
func (r *ChatResponse) ToolUses() []ContentBlock {
	if r == nil {
		return nil
	}
	var uses []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Message converts the response into an assistant turn for the next request.
// Empty text blocks are dropped; the API rejects them on input.
func (r *ChatResponse) Message() Message {
	blocks := make([]ContentBlock, 0, len(r.Content))
	for _, b := range r.Content {
		if b.Type == BlockText && b.Text == "" {
			continue
		}
		blocks = append(blocks, b)
	}
	return Message{Role: RoleAssistant, Blocks: blocks}
}

// AsMap returns the mapping view of the response body.
func (r *ChatResponse) AsMap() map[string]any {
	if r == nil {
		return map[string]any{}
	}
	if len(r.Raw) > 0 {
		return probe.ToMap(r.Raw)
	}
	return probe.ToMap(r.wire())
}

// String renders the whole response, used when no text block exists.
func (r *ChatResponse) String() string {
	if r == nil {
		return "<nil>"
	}
	if len(r.Raw) > 0 {
		return string(r.Raw)
	}
	data, err := json.Marshal(r.wire())
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	return string(data)
}

func (r *ChatResponse) wire() messagesResponse {
	return messagesResponse{
		ID:         r.ID,
		Type:       "message",
		Role:       string(RoleAssistant),
		Model:      r.Model,
		Content:    r.Content,
		StopReason: r.StopReason,
		Usage: apiUsage{
			InputTokens:  r.Usage.PromptTokens,
			OutputTokens: r.Usage.CompletionTokens,
		},
	}
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Verify ChatResponse exposes a mapping view at compile time.
var _ probe.Mapper = (*ChatResponse)(nil)
