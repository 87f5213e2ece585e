package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/teslashibe/sakshi/internal/httpc"
)

// GoogleConfig configures the Google-backed searchers.
type GoogleConfig struct {
	APIKey string

	// EngineID is the Programmable Search Engine ID (cx). Web search only.
	EngineID string

	// Endpoint overrides the API endpoint. Tests only.
	Endpoint string

	HTTPClient *http.Client
}

// clientOptions builds the API client options. The key rides on the
// transport so a custom HTTP client still authenticates.
func (c GoogleConfig) clientOptions() []option.ClientOption {
	base := httpc.Or(c.HTTPClient)
	client := &http.Client{
		Timeout:   base.Timeout,
		Transport: &transport.APIKey{Key: c.APIKey, Transport: base.Transport},
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return opts
}

// Google searches the web through the Custom Search JSON API.
type Google struct {
	svc      *customsearch.Service
	engineID string
}

// NewGoogle creates a Custom Search client.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.EngineID == "" {
		return nil, ErrNoEngineID
	}
	svc, err := customsearch.NewService(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("search [google]: create service: %w", err)
	}
	return &Google{svc: svc, engineID: cfg.EngineID}, nil
}

// Name returns "google".
func (g *Google) Name() string { return "google" }

// Search returns up to limit web results. The API caps limit at 10.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return nil, err
	}
	if limit > 10 {
		limit = 10
	}

	res, err := g.svc.Cse.List().Q(query).Cx(g.engineID).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search [google]: %w", err)
	}

	hits := make([]Hit, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || item.Link == "" {
			continue
		}
		hits = append(hits, Hit{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return hits, nil
}

// YouTubeWatchURL is the link prefix for video hits.
const YouTubeWatchURL = "https://www.youtube.com/watch?v="

// YouTube searches videos through the YouTube Data API v3.
type YouTube struct {
	svc *youtube.Service
}

// NewYouTube creates a YouTube search client. Only APIKey is required.
func NewYouTube(ctx context.Context, cfg GoogleConfig) (*YouTube, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	svc, err := youtube.NewService(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("search [youtube]: create service: %w", err)
	}
	return &YouTube{svc: svc}, nil
}

// Name returns "youtube".
func (y *YouTube) Name() string { return "youtube" }

// Search returns up to limit videos with watch links.
func (y *YouTube) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query, limit, err := normalize(query, limit)
	if err != nil {
		return nil, err
	}
	if limit > 50 {
		limit = 50
	}

	res, err := y.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search [youtube]: %w", err)
	}

	hits := make([]Hit, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		hit := Hit{URL: YouTubeWatchURL + item.Id.VideoId}
		if item.Snippet != nil {
			hit.Title = item.Snippet.Title
			hit.Snippet = item.Snippet.Description
			if ch := item.Snippet.ChannelTitle; ch != "" {
				hit.Snippet = strings.TrimSuffix(ch+": "+hit.Snippet, ": ")
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Verify searchers implement Searcher at compile time.
var (
	_ Searcher = (*Google)(nil)
	_ Searcher = (*YouTube)(nil)
)
