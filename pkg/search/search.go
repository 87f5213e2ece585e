// Package search provides the lookup backends the research agent calls:
// web search (Google Custom Search or DuckDuckGo), YouTube video search
// and Wikipedia summaries.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultLimit is the number of hits requested when the caller passes <= 0.
const DefaultLimit = 5

// Sentinel errors.
var (
	ErrEmptyQuery = errors.New("search: query is required")
	ErrNoAPIKey   = errors.New("search: API key required")
	ErrNoEngineID = errors.New("search: custom search engine ID required")
)

// Hit is a single search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher returns ranked hits for a query.
type Searcher interface {
	// Name identifies the backend in logs and tool output.
	Name() string

	// Search returns up to limit hits.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// NoResults is returned by FormatHits for an empty result set.
const NoResults = "No results found."

// FormatHits renders hits as a numbered plain-text list for the model.
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return NoResults
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n%s", i+1, strings.TrimSpace(h.Title), h.URL)
		if s := strings.TrimSpace(h.Snippet); s != "" {
			b.WriteString("\n")
			b.WriteString(s)
		}
	}
	return b.String()
}

// StatusError is a non-200 response from a search backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("search [%s]: status %d: %s", e.Backend, e.StatusCode, e.Body)
}

func normalize(query string, limit int) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return query, limit, nil
}

func statusError(backend string, resp *http.Response, body []byte) error {
	return &StatusError{
		Backend:    backend,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
