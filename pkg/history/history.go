// Package history decodes and bounds the rolling conversation history that
// clients send with every turn.
//
// The server keeps no conversation state. The client supplies the prior
// turns as JSON and receives the updated list back in the response.
package history

import "encoding/json"

// Window is the maximum number of turns kept and sent to the model.
const Window = 10

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role accepted in client history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User creates a user turn.
func User(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// Assistant creates an assistant turn.
func Assistant(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Decode parses client-supplied history JSON.
//
// Anything that is not a JSON array decodes to an empty history. Elements
// are kept only when they are objects with role "user" or "assistant" and
// a string content; everything else is dropped. No length cap is applied.
func Decode(raw string) []Turn {
	turns := []Turn{}
	if raw == "" {
		return turns
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return turns
	}

	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}

		var role, content string
		if json.Unmarshal(fields["role"], &role) != nil {
			continue
		}
		if !Role(role).Valid() {
			continue
		}
		if !isString(fields["content"]) || json.Unmarshal(fields["content"], &content) != nil {
			continue
		}
		turns = append(turns, Turn{Role: Role(role), Content: content})
	}
	return turns
}

// isString reports whether raw is a JSON string literal. A missing field or
// null would otherwise unmarshal into an empty Go string.
func isString(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			return true
		default:
			return false
		}
	}
	return false
}

// Last returns a copy of the last n turns.
func Last(turns []Turn, n int) []Turn {
	if n < 0 {
		n = 0
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append returns a new slice holding turns followed by more.
// The input slice is never modified.
func Append(turns []Turn, more ...Turn) []Turn {
	out := make([]Turn, 0, len(turns)+len(more))
	out = append(out, turns...)
	return append(out, more...)
}

// Advance records one completed exchange and bounds the result to Window.
func Advance(turns []Turn, user, reply string) []Turn {
	return Last(Append(turns, User(user), Assistant(reply)), Window)
}
