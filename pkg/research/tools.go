package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/sakshi/pkg/inference"
	"github.com/teslashibe/sakshi/pkg/journal"
	"github.com/teslashibe/sakshi/pkg/search"
)

// Tool names.
const (
	ToolWebSearch     = "web_search"
	ToolYouTubeSearch = "youtube_search"
	ToolWikipedia     = "wikipedia"
	ToolSaveToFile    = "save_text_to_file"
)

// Tool is a capability the agent can offer to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Definition converts the tool to the model's tool format.
func (t Tool) Definition() inference.Tool {
	schema := map[string]any{
		"type":       "object",
		"properties": t.Parameters,
	}
	if len(t.Required) > 0 {
		schema["required"] = t.Required
	}
	return inference.NewTool(t.Name, t.Description, schema)
}

// ToolsConfig holds dependencies for the research tools.
type ToolsConfig struct {
	Web     search.Searcher   // Web search backend
	YouTube search.Searcher   // Video search backend (optional)
	Wiki    *search.Wikipedia // Encyclopedia lookup (optional)
	Journal *journal.Writer   // Save-to-file target (optional)
	Limit   int               // Hits per search, 0 means search.DefaultLimit
}

// Tools returns the tools whose backends are configured.
func Tools(cfg ToolsConfig) []Tool {
	limit := cfg.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	var tools []Tool

	if cfg.Web != nil {
		tools = append(tools, Tool{
			Name:        ToolWebSearch,
			Description: "Search the web for current information. Input is a search query. Returns titles, links and snippets.",
			Parameters: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			Required: []string{"query"},
			Handler:  searchHandler(cfg.Web, limit),
		})
	}

	if cfg.YouTube != nil {
		tools = append(tools, Tool{
			Name:        ToolYouTubeSearch,
			Description: "Search YouTube for videos. Returns video titles with watch URLs. Use when the user asks for videos.",
			Parameters: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for on YouTube",
				},
			},
			Required: []string{"query"},
			Handler:  searchHandler(cfg.YouTube, limit),
		})
	}

	if cfg.Wiki != nil {
		wiki := cfg.Wiki
		tools = append(tools, Tool{
			Name:        ToolWikipedia,
			Description: "Look up a topic on Wikipedia. Returns short summaries of the best matching pages.",
			Parameters: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The topic to look up",
				},
			},
			Required: []string{"query"},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				query, err := stringArg(args, "query")
				if err != nil {
					return "", err
				}
				return wiki.Lookup(ctx, query)
			},
		})
	}

	if cfg.Journal != nil {
		j := cfg.Journal
		tools = append(tools, Tool{
			Name:        ToolSaveToFile,
			Description: "Save structured research data to a text file.",
			Parameters: map[string]any{
				"data": map[string]any{
					"type":        "string",
					"description": "The text to save",
				},
				"filename": map[string]any{
					"type":        "string",
					"description": "File name, defaults to " + journal.DefaultFile,
				},
			},
			Required: []string{"data"},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				data, err := stringArg(args, "data")
				if err != nil {
					return "", err
				}
				filename, _ := args["filename"].(string)
				name, err := j.Append(filename, data)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Data successfully saved to %s", name), nil
			},
		})
	}

	return tools
}

func searchHandler(s search.Searcher, limit int) func(context.Context, map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, err := stringArg(args, "query")
		if err != nil {
			return "", err
		}
		hits, err := s.Search(ctx, query, limit)
		if err != nil {
			return "", err
		}
		return search.FormatHits(hits), nil
	}
}

var errMissingArg = errors.New("missing required argument")

func stringArg(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s", errMissingArg, key)
	}
	return v, nil
}
