// Package research answers questions with a tool-using model loop.
//
// The agent offers the model a set of tools (web search, video search,
// Wikipedia, save-to-file) plus one structured response tool whose input
// is a Result. The loop ends when the model submits a valid Result, stops
// calling tools, or runs out of steps.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/sakshi/pkg/inference"
)

// SystemPrompt is the fixed directive for research runs.
const SystemPrompt = "You are a research assistant that can search the web and summarize results.\n" +
	"Use the available tools (web search, Wikipedia, saving to file) whenever they\n" +
	"help answer the question. Prefer returning concrete links (for example YouTube\n" +
	"URLs) when the user asks for videos or online content.\n\n" +
	"Always return a structured response by calling the `" + ResponseTool + "` tool."

// ResponseTool is the name of the structured response tool.
const ResponseTool = "research_response"

// IncompleteReply answers a run that hit the step limit before the model
// summarized its findings.
const IncompleteReply = "I looked into that but ran out of time before finishing. " +
	"Please try asking a narrower question."

// Defaults.
const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024
	DefaultMaxSteps  = 8
)

// ErrUnknownTool is reported to the model when it calls a tool that was not offered.
var ErrUnknownTool = errors.New("research: unknown tool")

// Config holds agent configuration. MaxSteps bounds the number of model
// calls per run.
type Config struct {
	Model     string
	MaxTokens int
	MaxSteps  int
	Logger    *slog.Logger
}

// Option configures the agent.
type Option func(*Config)

// WithModel sets the model used for research runs.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the per-call token limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithMaxSteps sets the maximum number of model calls per run.
func WithMaxSteps(n int) Option {
	return func(c *Config) { c.MaxSteps = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		MaxSteps:  DefaultMaxSteps,
		Logger:    slog.Default(),
	}
}

// Agent runs research queries.
type Agent struct {
	provider inference.Provider
	tools    map[string]Tool
	defs     []inference.Tool
	config   *Config
	logger   *slog.Logger
}

// NewAgent creates an agent that drives provider with the given tools.
func NewAgent(provider inference.Provider, tools []Tool, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("research: provider is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("research: max steps must be positive, got %d", cfg.MaxSteps)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	a := &Agent{
		provider: provider,
		tools:    make(map[string]Tool, len(tools)),
		config:   cfg,
		logger:   cfg.Logger.With("component", "research.agent"),
	}
	for _, t := range tools {
		if t.Name == ResponseTool {
			return nil, fmt.Errorf("research: tool name %q is reserved", ResponseTool)
		}
		a.tools[t.Name] = t
		a.defs = append(a.defs, t.Definition())
	}
	a.defs = append(a.defs, inference.NewTool(
		ResponseTool,
		"Submit the final answer. Call this exactly once when you are done researching.",
		ResultSchema(),
	))
	return a, nil
}

// ToolNames returns the names of the offered tools, excluding the response tool.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.defs))
	for _, d := range a.defs {
		if d.Name != ResponseTool {
			names = append(names, d.Name)
		}
	}
	return names
}

// Run is the record of one research run. ToolsCalled lists successful
// tool invocations in order.
type Run struct {
	Query       string
	Result      *Result
	Messages    []inference.Message
	Steps       int
	ToolsCalled []string
}

// LastText returns the text of the last assistant message that has any.
func (r *Run) LastText() string {
	if r == nil {
		return ""
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role != inference.RoleAssistant {
			continue
		}
		if text := messageText(m); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// Exhausted reports whether the run stopped on the step limit with tool
// results the model never saw.
func (r *Run) Exhausted() bool {
	if r == nil || len(r.Messages) == 0 {
		return false
	}
	return r.Result == nil && r.Messages[len(r.Messages)-1].Role == inference.RoleUser && r.Steps > 0
}

// String renders the whole run.
func (r *Run) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "research run for %q (%d steps)", r.Query, r.Steps)
	for _, m := range r.Messages {
		fmt.Fprintf(&b, "\n[%s]", m.Role)
		if len(m.Blocks) == 0 {
			b.WriteString(" " + m.Content)
			continue
		}
		for _, blk := range m.Blocks {
			switch blk.Type {
			case inference.BlockText:
				b.WriteString(" " + blk.Text)
			case inference.BlockToolUse:
				fmt.Fprintf(&b, " %s(%s)", blk.Name, blk.Input)
			case inference.BlockToolResult:
				fmt.Fprintf(&b, " => %s", blk.Content)
			}
		}
	}
	return b.String()
}

// Run executes the tool loop for query. Provider errors end the run and
// are returned; tool failures are reported back to the model.
func (a *Agent) Run(ctx context.Context, query string) (*Run, error) {
	start := time.Now()
	run := &Run{
		Query:    query,
		Messages: []inference.Message{inference.NewUserMessage(query)},
	}

	for run.Steps < a.config.MaxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.provider.Chat(ctx, &inference.ChatRequest{
			System:     SystemPrompt,
			Messages:   run.Messages,
			Model:      a.config.Model,
			MaxTokens:  a.config.MaxTokens,
			Tools:      a.defs,
			ToolChoice: inference.ToolChoiceAuto,
		})
		if err != nil {
			return nil, fmt.Errorf("research: %w", err)
		}
		run.Steps++
		run.Messages = append(run.Messages, resp.Message())

		uses := resp.ToolUses()
		if len(uses) == 0 {
			break
		}

		results := make([]inference.ContentBlock, 0, len(uses))
		for _, use := range uses {
			if use.Name == ResponseTool {
				res, err := ParseResult(use.Input)
				if err != nil {
					a.logger.Debug("structured response rejected", "error", err)
					results = append(results, inference.ToolResultBlock(use.ID, err.Error(), true))
					continue
				}
				run.Result = res
				results = append(results, inference.ToolResultBlock(use.ID, "ok", false))
				continue
			}
			out, err := a.call(ctx, use)
			if err != nil {
				a.logger.Debug("tool failed", "tool", use.Name, "error", err)
				results = append(results, inference.ToolResultBlock(use.ID, err.Error(), true))
				continue
			}
			run.ToolsCalled = append(run.ToolsCalled, use.Name)
			results = append(results, inference.ToolResultBlock(use.ID, out, false))
		}
		run.Messages = append(run.Messages, inference.NewToolResultsMessage(results...))

		if run.Result != nil {
			break
		}
	}

	if run.Result != nil && len(run.Result.ToolsUsed) == 0 {
		run.Result.ToolsUsed = append([]string(nil), run.ToolsCalled...)
	}

	a.logger.Info("research run finished",
		"steps", run.Steps,
		"tools", run.ToolsCalled,
		"structured", run.Result != nil,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return run, nil
}

// Answer runs query and renders the reply text: the flattened structured
// result, else the model's last text, else the whole run. A run cut off by
// the step limit answers with IncompleteReply instead of raw tool output.
func (a *Agent) Answer(ctx context.Context, query string) (string, error) {
	run, err := a.Run(ctx, query)
	if err != nil {
		return "", err
	}
	if run.Result != nil {
		return run.Result.Flatten(), nil
	}
	if text := run.LastText(); text != "" {
		return text, nil
	}
	if run.Exhausted() {
		a.logger.Warn("research step limit reached", "steps", run.Steps, "run", run.String())
		return IncompleteReply, nil
	}
	return run.String(), nil
}

func (a *Agent) call(ctx context.Context, use inference.ContentBlock) (string, error) {
	tool, ok := a.tools[use.Name]
	if !ok || tool.Handler == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, use.Name)
	}

	args := map[string]any{}
	if len(use.Input) > 0 {
		if err := json.Unmarshal(use.Input, &args); err != nil {
			return "", fmt.Errorf("research: invalid arguments for %s: %w", use.Name, err)
		}
	}
	return tool.Handler(ctx, args)
}

// messageText joins the text blocks of m.
func messageText(m inference.Message) string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	var texts []string
	for _, b := range m.Blocks {
		if b.Type == inference.BlockText && b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, "\n")
}
