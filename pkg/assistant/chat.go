package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/sakshi/pkg/history"
	"github.com/teslashibe/sakshi/pkg/inference"
)

// ChatSystemPrompt makes the model produce a usable artifact (a draft, a
// link, instructions) instead of refusing.
const ChatSystemPrompt = "You are a helpful personal assistant. Provide clear, detailed answers when " +
	"the user asks for explanations, including structured bullet points where " +
	"helpful.\n\n" +
	"You do NOT have direct control over email, YouTube, or the user's computer, " +
	"but you MUST still be helpful:\n" +
	"- If the user asks you to send an email, DRAFT the exact email (subject and body) " +
	"they can copy-paste instead of saying you cannot send it.\n" +
	"- If the user asks for a YouTube video or link, provide one or more plausible " +
	"YouTube search URLs or video links they can click.\n" +
	"- If the user asks for desktop actions (brightness, volume, settings), explain " +
	"step-by-step how they can do it themselves.\n" +
	"Avoid generic disclaimers like 'I do not have the capability'; always return " +
	"the most useful draft, link, or instructions you can."

// Chat answers turns with the conversational model and no tools.
type Chat struct {
	provider  inference.Provider
	model     string
	maxTokens int
	logger    *slog.Logger
}

// ChatOption configures Chat.
type ChatOption func(*Chat)

// WithChatModel overrides the provider's default model.
func WithChatModel(model string) ChatOption {
	return func(c *Chat) { c.model = model }
}

// WithChatMaxTokens sets the reply token limit.
func WithChatMaxTokens(n int) ChatOption {
	return func(c *Chat) { c.maxTokens = n }
}

// WithChatLogger sets the logger.
func WithChatLogger(l *slog.Logger) ChatOption {
	return func(c *Chat) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChat creates the direct chat path.
func NewChat(provider inference.Provider, opts ...ChatOption) *Chat {
	c := &Chat{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "assistant.chat")
	return c
}

// Messages builds the model input: prior turns plus the new user turn,
// bounded to the last history.Window entries.
func Messages(turns []history.Turn, transcript string) []inference.Message {
	window := history.Last(history.Append(turns, history.User(transcript)), history.Window)
	msgs := make([]inference.Message, 0, len(window))
	for _, t := range window {
		msgs = append(msgs, inference.Message{Role: inference.Role(t.Role), Content: t.Content})
	}
	return msgs
}

// Reply sends the turn to the model and returns the first text block, or
// a rendering of the whole response when there is none.
func (c *Chat) Reply(ctx context.Context, turns []history.Turn, transcript string) (string, error) {
	resp, err := c.provider.Chat(ctx, &inference.ChatRequest{
		System:    ChatSystemPrompt,
		Messages:  Messages(turns, transcript),
		Model:     c.model,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	if text, ok := resp.FirstText(); ok {
		return text, nil
	}
	c.logger.Warn("no text block in chat response", "stop_reason", resp.StopReason)
	return resp.String(), nil
}
