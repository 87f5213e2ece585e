package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/teslashibe/sakshi/internal/httpc"
)

const duckDuckGoBaseURL = "https://html.duckduckgo.com"

// DuckDuckGo scrapes the keyless HTML results page.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo searcher. Empty baseURL selects the
// public endpoint; a nil client selects the shared one.
func NewDuckDuckGo(baseURL string, client *http.Client) *DuckDuckGo {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = duckDuckGoBaseURL
	}
	return &DuckDuckGo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Or(client),
	}
}

// Name returns "duckduckgo".
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search returns up to limit organic results.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return nil, err
	}

	endpoint := d.baseURL + "/html/?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search [duckduckgo]: create request: %w", err)
	}
	httpc.SetUserAgent(req)
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search [duckduckgo]: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, statusError("duckduckgo", resp, body)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search [duckduckgo]: parse page: %w", err)
	}

	hits := parseDuckDuckGo(doc)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// parseDuckDuckGo walks the results page. Each a.result__a opens a hit and
// the following .result__snippet fills its snippet.
func parseDuckDuckGo(doc *html.Node) []Hit {
	var hits []Hit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				if link := unwrapRedirect(attr(n, "href")); link != "" {
					hits = append(hits, Hit{Title: nodeText(n), URL: link})
				}
				return
			case hasClass(n, "result__snippet"):
				if len(hits) > 0 && hits[len(hits)-1].Snippet == "" {
					hits[len(hits)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links.
func unwrapRedirect(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Host == "" || strings.HasSuffix(u.Host, "duckduckgo.com") {
		// Internal links other than the redirect are ads or navigation.
		return u.Query().Get("uddg")
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Verify DuckDuckGo implements Searcher at compile time.
var _ Searcher = (*DuckDuckGo)(nil)
