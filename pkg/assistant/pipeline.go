// Package assistant runs one voice turn end to end.
//
// A turn is transcribed, routed to either the research agent or the direct
// chat model, and the reply is synthesized back to speech. Conversation
// state is not kept here: the caller passes prior history in and receives
// the updated history back.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/teslashibe/sakshi/pkg/history"
	"github.com/teslashibe/sakshi/pkg/router"
	"github.com/teslashibe/sakshi/pkg/stt"
	"github.com/teslashibe/sakshi/pkg/tts"
)

// FriendlyRetryMessage is the reply when nothing intelligible was heard.
const FriendlyRetryMessage = "I couldn't clearly understand that audio. " +
	"Please try again, speaking a bit closer to the mic."

// Researcher answers a query with the research agent.
type Researcher interface {
	Answer(ctx context.Context, query string) (string, error)
}

// Replier answers a turn on the direct chat path.
type Replier interface {
	Reply(ctx context.Context, turns []history.Turn, transcript string) (string, error)
}

// TalkRequest is one uploaded turn.
type TalkRequest struct {
	// Audio is the recorded clip.
	Audio io.Reader

	// Filename is the client's name for the clip, used as a format hint.
	Filename string

	// History is the client's prior turns as a JSON array, possibly empty
	// or malformed.
	History string
}

// TalkResponse is the result of a turn.
type TalkResponse struct {
	Transcript string         `json:"transcript"`
	Reply      string         `json:"reply"`
	AudioB64   string         `json:"audio_b64"`
	History    []history.Turn `json:"history"`

	Path    router.Path `json:"-"`
	Metrics Metrics     `json:"-"`
}

// Pipeline wires the providers for a turn.
type Pipeline struct {
	stt      stt.Provider
	tts      tts.Provider
	chat     Replier
	research Researcher
	router   *router.Router
	metrics  *MetricsCollector
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithResearcher sets the research agent. Without one, or with a router
// built without research, every turn takes the chat path.
func WithResearcher(r Researcher) Option {
	return func(p *Pipeline) { p.research = r }
}

// WithRouter sets the turn router.
func WithRouter(r *router.Router) Option {
	return func(p *Pipeline) { p.router = r }
}

// WithMetrics sets the collector that receives per-turn metrics.
func WithMetrics(m *MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline. The default router has research disabled.
func NewPipeline(speech stt.Provider, voice tts.Provider, chat Replier, opts ...Option) (*Pipeline, error) {
	if speech == nil {
		return nil, errors.New("assistant: stt provider is required")
	}
	if voice == nil {
		return nil, errors.New("assistant: tts provider is required")
	}
	if chat == nil {
		return nil, errors.New("assistant: chat is required")
	}

	p := &Pipeline{
		stt:    speech,
		tts:    voice,
		chat:   chat,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.router == nil {
		p.router = router.New(false)
	}
	if p.research == nil && p.router.ResearchAvailable() {
		return nil, errors.New("assistant: router allows research but no researcher is set")
	}
	p.logger = p.logger.With("component", "assistant.pipeline")
	return p, nil
}

// ResearchAvailable reports whether turns can take the research path.
func (p *Pipeline) ResearchAvailable() bool {
	return p.router.ResearchAvailable()
}

// Metrics returns the collector, or nil when none is set.
func (p *Pipeline) Metrics() *MetricsCollector {
	return p.metrics
}

// Talk runs one turn. An empty transcript is not an error: the response
// carries FriendlyRetryMessage, no audio and the decoded input history.
// Any provider failure aborts the turn.
func (p *Pipeline) Talk(ctx context.Context, req *TalkRequest) (*TalkResponse, error) {
	if req == nil || req.Audio == nil {
		return nil, stt.ErrNoAudio
	}
	timer := newTurnTimer()
	counter := &countingReader{r: req.Audio}

	turns := history.Decode(req.History)

	tr, err := p.stt.Transcribe(ctx, counter, stt.TranscribeOptions{Filename: req.Filename})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	timer.m.STTLatency = timer.lap()
	timer.m.AudioIn = counter.n

	if tr.Empty() {
		p.logger.Info("empty transcript", "bytes", counter.n)
		m := timer.done()
		if p.metrics != nil {
			p.metrics.Record(m)
		}
		return &TalkResponse{
			Transcript: "",
			Reply:      FriendlyRetryMessage,
			AudioB64:   "",
			History:    turns,
			Metrics:    m,
		}, nil
	}
	transcript := tr.Text

	path := p.router.Route(transcript)
	if path == router.PathResearch {
		timer.m.Keyword, _ = p.router.Match(transcript)
	}
	timer.m.Path = path

	var reply string
	switch path {
	case router.PathResearch:
		reply, err = p.research.Answer(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("research: %w", err)
		}
	default:
		reply, err = p.chat.Reply(ctx, turns, transcript)
		if err != nil {
			return nil, err
		}
	}
	timer.m.ReplyLatency = timer.lap()

	audio, err := p.tts.Synthesize(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	timer.m.TTSLatency = timer.lap()

	var encoded string
	if !audio.Empty() {
		encoded = audio.Encoded
		timer.m.AudioOut = len(audio.Audio)
	} else {
		p.logger.Warn("no audio in synthesis response", "chars", len(reply))
	}

	m := timer.done()
	if p.metrics != nil {
		p.metrics.Record(m)
	}
	p.logger.Info("turn complete",
		"path", path,
		"keyword", m.Keyword,
		"history", len(turns),
		"latency", m.FormatLatency(),
	)

	return &TalkResponse{
		Transcript: transcript,
		Reply:      reply,
		AudioB64:   encoded,
		History:    history.Advance(turns, transcript, reply),
		Path:       path,
		Metrics:    m,
	}, nil
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
