package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/sakshi/internal/httpc"
)

const providerAnthropic = "anthropic"

// Anthropic is the Messages API provider.
// One HTTP request per Chat call; failures are returned, never retried.
type Anthropic struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewAnthropic creates a new Anthropic client.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &Anthropic{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    client,
		logger:  cfg.Logger.With("component", "inference.anthropic"),
	}, nil
}

// Chat sends one Messages API request.
func (a *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, WrapError(providerAnthropic, ErrNoMessages)
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	resp, err := a.post(ctx, "/v1/messages", a.buildPayload(req, model))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.parseError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("read response: %w", err))
	}

	var result messagesResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("decode response: %w", err))
	}

	out := &ChatResponse{
		ID:         result.ID,
		Model:      result.Model,
		Content:    result.Content,
		StopReason: result.StopReason,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
		Raw:       json.RawMessage(raw),
	}

	a.logger.Debug("chat completed",
		"model", out.Model,
		"stop_reason", out.StopReason,
		"blocks", len(out.Content),
		"input_tokens", out.Usage.PromptTokens,
		"output_tokens", out.Usage.CompletionTokens,
		"latency_ms", out.LatencyMs,
	)

	return out, nil
}

// Capabilities returns what this client supports.
func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{
		Chat:  true,
		Tools: true,
	}
}

// Health checks API connectivity and key validity by listing models.
func (a *Anthropic) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/models?limit=1", nil)
	if err != nil {
		return WrapError(providerAnthropic, fmt.Errorf("create request: %w", err))
	}
	a.setHeaders(req)

	resp, err := a.http.Do(req)
	if err != nil {
		return WrapError(providerAnthropic, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return a.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (a *Anthropic) Close() error {
	a.http.CloseIdleConnections()
	return nil
}

// buildPayload constructs the API request payload.
func (a *Anthropic) buildPayload(req *ChatRequest, model string) map[string]any {
	messages := make([]apiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := apiMessage{Role: string(msg.Role)}
		if len(msg.Blocks) > 0 {
			m.Content = msg.Blocks
		} else {
			m.Content = msg.Content
		}
		messages = append(messages, m)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	payload := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}

	if req.System != "" {
		payload["system"] = req.System
	}

	temp := req.Temperature
	if temp == 0 {
		temp = a.config.Temperature
	}
	if temp > 0 {
		payload["temperature"] = temp
	}

	if len(req.Stop) > 0 {
		payload["stop_sequences"] = req.Stop
	}

	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
		if choice := toolChoice(req.ToolChoice); choice != nil {
			payload["tool_choice"] = choice
		}
	}

	return payload
}

// toolChoice maps a ChatRequest tool choice to the wire object.
func toolChoice(choice string) map[string]any {
	switch choice {
	case "":
		return nil
	case ToolChoiceAuto, ToolChoiceAny, ToolChoiceNone:
		return map[string]any{"type": choice}
	default:
		return map[string]any{"type": "tool", "name": choice}
	}
}

// post makes a POST request.
func (a *Anthropic) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("create request: %w", err))
	}
	a.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, WrapError(providerAnthropic, fmt.Errorf("messages request: %w", err))
	}
	return resp, nil
}

// setHeaders sets authentication and version headers.
func (a *Anthropic) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", a.config.Version)
	req.Header.Set("Accept", "application/json")
}

// parseError reads and parses an error response.
func (a *Anthropic) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Type
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerAnthropic,
	}
}

// API wire types
type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      apiUsage       `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
