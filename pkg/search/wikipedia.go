package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/sakshi/internal/httpc"
)

const (
	wikipediaBaseURL = "https://en.wikipedia.org"

	// WikipediaTopK is the number of pages summarized per lookup.
	WikipediaTopK = 2

	// WikipediaMaxChars caps the rendered summary, in characters.
	WikipediaMaxChars = 400

	// WikipediaNoResult is returned when the search matches nothing.
	WikipediaNoResult = "No good Wikipedia Search Result was found"
)

// Wikipedia looks up page intros through the MediaWiki action API.
type Wikipedia struct {
	baseURL  string
	client   *http.Client
	topK     int
	maxChars int
}

// NewWikipedia creates a Wikipedia client. Empty baseURL selects
// en.wikipedia.org; a nil client selects the shared one.
func NewWikipedia(baseURL string, client *http.Client) *Wikipedia {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = wikipediaBaseURL
	}
	return &Wikipedia{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   httpc.Or(client),
		topK:     WikipediaTopK,
		maxChars: WikipediaMaxChars,
	}
}

// Name returns "wikipedia".
func (w *Wikipedia) Name() string { return "wikipedia" }

// Search returns the top matching pages with their intro as snippet.
func (w *Wikipedia) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return nil, err
	}

	titles, err := w.searchTitles(ctx, query, limit)
	if err != nil || len(titles) == 0 {
		return nil, err
	}

	extracts, err := w.extracts(ctx, titles)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(titles))
	for _, title := range titles {
		extract, ok := extracts[title]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Title:   title,
			URL:     w.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
			Snippet: extract,
		})
	}
	return hits, nil
}

// Lookup renders the top pages as "Page: ...\nSummary: ..." blocks joined
// by a blank line and capped at the character limit.
func (w *Wikipedia) Lookup(ctx context.Context, query string) (string, error) {
	hits, err := w.Search(ctx, query, w.topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return WikipediaNoResult, nil
	}

	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("Page: %s\nSummary: %s", h.Title, h.Snippet))
	}
	return truncateRunes(strings.Join(blocks, "\n\n"), w.maxChars), nil
}

func (w *Wikipedia) searchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	var out struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(limit)},
		"srprop":   {""},
	}
	if err := w.get(ctx, params, &out); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(out.Query.Search))
	for _, s := range out.Query.Search {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	return titles, nil
}

func (w *Wikipedia) extracts(ctx context.Context, titles []string) (map[string]string, error) {
	var out struct {
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
				Missing bool   `json:"missing"`
			} `json:"pages"`
		} `json:"query"`
	}
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"titles":      {strings.Join(titles, "|")},
	}
	if err := w.get(ctx, params, &out); err != nil {
		return nil, err
	}

	extracts := make(map[string]string, len(out.Query.Pages))
	for _, p := range out.Query.Pages {
		if p.Missing {
			continue
		}
		extracts[p.Title] = strings.TrimSpace(p.Extract)
	}
	return extracts, nil
}

func (w *Wikipedia) get(ctx context.Context, params url.Values, into any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("search [wikipedia]: create request: %w", err)
	}
	httpc.SetUserAgent(req)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("search [wikipedia]: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return statusError("wikipedia", resp, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("search [wikipedia]: decode response: %w", err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Verify Wikipedia implements Searcher at compile time.
var _ Searcher = (*Wikipedia)(nil)
