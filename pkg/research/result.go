package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Result is the structured answer the agent must produce.
type Result struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
}

// Flatten renders the result as reply text. The sources section is only
// present when there are sources.
func (r Result) Flatten() string {
	if len(r.Sources) == 0 {
		return r.Summary
	}
	var b strings.Builder
	b.WriteString(r.Summary)
	b.WriteString("\n\nSources:")
	for _, s := range r.Sources {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}

// ResultSchema is the JSON Schema of Result, used as the input schema of
// the structured response tool.
func ResultSchema() map[string]any {
	list := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic":      map[string]any{"type": "string", "description": "The research topic"},
			"summary":    map[string]any{"type": "string", "description": "A concise answer to the question"},
			"sources":    withDescription(list, "URLs or references backing the summary"),
			"tools_used": withDescription(list, "Names of the tools used"),
		},
		"required": []string{"topic", "summary", "sources", "tools_used"},
	}
}

func withDescription(schema map[string]any, desc string) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	out["description"] = desc
	return out
}

// ErrInvalidResult is returned when structured output does not match the schema.
var ErrInvalidResult = errors.New("research: invalid structured response")

// ParseResult decodes and validates structured output. Every field is
// required and must have the schema's type.
func ParseResult(raw json.RawMessage) (*Result, error) {
	var in struct {
		Topic     *string   `json:"topic"`
		Summary   *string   `json:"summary"`
		Sources   *[]string `json:"sources"`
		ToolsUsed *[]string `json:"tools_used"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	var missing []string
	if in.Topic == nil {
		missing = append(missing, "topic")
	}
	if in.Summary == nil {
		missing = append(missing, "summary")
	}
	if in.Sources == nil {
		missing = append(missing, "sources")
	}
	if in.ToolsUsed == nil {
		missing = append(missing, "tools_used")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", ErrInvalidResult, strings.Join(missing, ", "))
	}

	return &Result{
		Topic:     *in.Topic,
		Summary:   *in.Summary,
		Sources:   *in.Sources,
		ToolsUsed: *in.ToolsUsed,
	}, nil
}
