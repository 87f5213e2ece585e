package inference

import "encoding/json"

// Role defines message roles in a conversation.
type Role string

const (
	// RoleUser is for user messages and tool results.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Message represents a chat message in a conversation.
// A message is either plain text (Content) or a list of blocks (Blocks);
// Blocks wins when both are set.
type Message struct {
	// Role identifies the message sender.
	Role Role

	// Content is the text content of the message.
	Content string

	// Blocks are structured content blocks (tool calls and results).
	Blocks []ContentBlock
}

// ContentBlock is one element of a message's content list.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Tool defines a callable function for the model.
type Tool struct {
	// Name of the tool.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema of the tool input.
	InputSchema map[string]any `json:"input_schema"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolResultsMessage creates the user turn answering tool calls.
func NewToolResultsMessage(results ...ContentBlock) Message {
	return Message{Role: RoleUser, Blocks: results}
}

// TextBlock creates a text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock creates a tool_use block. A nil input is sent as {}.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock creates a tool_result block.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// NewTool creates a tool definition.
func NewTool(name, description string, schema map[string]any) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
}
