package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	var reqBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("Expected anthropic-version 2023-06-01, got %s", got)
		}
		json.NewDecoder(r.Body).Decode(&reqBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-haiku-20240307",
			"content": [{"type": "text", "text": "Hello! How can I help?"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client, err := NewAnthropic(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		System: "Be brief.",
		Messages: []Message{
			NewUserMessage("Hi"),
			NewAssistantMessage("Hello"),
			NewUserMessage("How are you?"),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if text, _ := resp.FirstText(); text != "Hello! How can I help?" {
		t.Errorf("Unexpected content: %s", text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if len(resp.Raw) == 0 {
		t.Error("Expected raw body to be kept")
	}

	if reqBody["system"] != "Be brief." {
		t.Errorf("Expected system prompt, got %v", reqBody["system"])
	}
	if reqBody["model"] != "claude-3-haiku-20240307" {
		t.Errorf("Expected default model, got %v", reqBody["model"])
	}
	if reqBody["max_tokens"] != float64(512) {
		t.Errorf("Expected default max_tokens, got %v", reqBody["max_tokens"])
	}
	msgs, _ := reqBody["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "Hi" {
		t.Errorf("Unexpected first message %v", first)
	}
	if _, ok := reqBody["tools"]; ok {
		t.Error("Expected no tools in plain chat")
	}
}

func TestAnthropicChatWithTools(t *testing.T) {
	var reqBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&reqBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_02",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-haiku-20240307",
			"content": [
				{"type": "text", "text": "Let me look that up."},
				{"type": "tool_use", "id": "toolu_1", "name": "wikipedia", "input": {"query": "London"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 10}
		}`))
	}))
	defer server.Close()

	client, _ := NewAnthropic(WithBaseURL(server.URL), WithAPIKey("test-key"))
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewUserMessage("Tell me about London"),
			{Role: RoleAssistant, Blocks: []ContentBlock{ToolUseBlock("toolu_0", "web_search", json.RawMessage(`{"query":"London"}`))}},
			NewToolResultsMessage(ToolResultBlock("toolu_0", "no results", true)),
		},
		Tools: []Tool{
			NewTool("wikipedia", "Look up Wikipedia", map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			}),
		},
		ToolChoice: ToolChoiceAuto,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.StopReason != StopToolUse {
		t.Errorf("Expected tool_use stop reason, got %s", resp.StopReason)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("Expected 1 tool use, got %d", len(uses))
	}
	if uses[0].ID != "toolu_1" || uses[0].Name != "wikipedia" {
		t.Errorf("Unexpected tool use %+v", uses[0])
	}
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(uses[0].Input, &input); err != nil || input.Query != "London" {
		t.Errorf("Unexpected tool input %s", uses[0].Input)
	}

	tools, ok := reqBody["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("Expected tools in request, got %v", reqBody["tools"])
	}
	if _, ok := tools[0].(map[string]any)["input_schema"]; !ok {
		t.Error("Expected input_schema on tool")
	}
	if choice, _ := reqBody["tool_choice"].(map[string]any); choice["type"] != "auto" {
		t.Errorf("Expected auto tool choice, got %v", reqBody["tool_choice"])
	}

	msgs := reqBody["messages"].([]any)
	results := msgs[2].(map[string]any)["content"].([]any)
	block := results[0].(map[string]any)
	if block["type"] != "tool_result" || block["tool_use_id"] != "toolu_0" || block["is_error"] != true {
		t.Errorf("Unexpected tool result block %v", block)
	}
}

func TestToolChoice(t *testing.T) {
	if toolChoice("") != nil {
		t.Error("expected nil for empty choice")
	}
	if got := toolChoice(ToolChoiceAny); got["type"] != "any" {
		t.Errorf("unexpected %v", got)
	}
	if got := toolChoice("research_response"); got["type"] != "tool" || got["name"] != "research_response" {
		t.Errorf("unexpected %v", got)
	}
}

func TestAnthropicHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("Expected /v1/models, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	client, _ := NewAnthropic(WithBaseURL(server.URL), WithAPIKey("k"))
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}

func TestAnthropicError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`))
	}))
	defer server.Close()

	client, _ := NewAnthropic(WithBaseURL(server.URL), WithAPIKey("k"))
	defer client.Close()

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if !apiErr.IsRateLimited() || apiErr.Code != "rate_limit_error" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
}

func TestAnthropicValidation(t *testing.T) {
	if _, err := NewAnthropic(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}

	client, _ := NewAnthropic(WithAPIKey("k"))
	if _, err := client.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrNoMessages) {
		t.Errorf("Expected ErrNoMessages, got %v", err)
	}

	caps := client.Capabilities()
	if !caps.Chat || !caps.Tools {
		t.Errorf("unexpected capabilities %+v", caps)
	}
}
