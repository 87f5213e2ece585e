// Package router decides which backend answers a transcribed turn.
package router

import "strings"

// Path is the backend chosen for a turn.
type Path string

const (
	// PathChat sends the turn to the conversational model.
	PathChat Path = "chat"

	// PathResearch sends the turn to the web-research agent.
	PathResearch Path = "research"
)

// Keywords trigger the research path when found anywhere in the transcript.
var Keywords = []string{"youtube", "search", "google", "wikipedia", "wiki"}

// Router is a stateless keyword router. Whether the research agent exists
// is fixed when the router is built.
type Router struct {
	research bool
	keywords []string
}

// New creates a router. When researchAvailable is false every turn routes
// to PathChat.
func New(researchAvailable bool) *Router {
	kw := make([]string, len(Keywords))
	copy(kw, Keywords)
	return &Router{research: researchAvailable, keywords: kw}
}

// ResearchAvailable reports whether the research path can be selected.
func (r *Router) ResearchAvailable() bool {
	return r.research
}

// Route picks the path for a transcript using a case-insensitive substring test.
func (r *Router) Route(transcript string) Path {
	if !r.research {
		return PathChat
	}
	if _, ok := r.Match(transcript); ok {
		return PathResearch
	}
	return PathChat
}

// Match returns the first keyword contained in transcript.
func (r *Router) Match(transcript string) (string, bool) {
	lower := strings.ToLower(transcript)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
