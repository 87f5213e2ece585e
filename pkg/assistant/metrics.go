package assistant

import (
	"sync"
	"time"

	"github.com/teslashibe/sakshi/pkg/router"
)

// Metrics tracks latency at each stage of one turn. Stage latencies cover
// their own stage only; TotalLatency runs from Start to the end of the turn.
type Metrics struct {
	Start time.Time

	STTLatency   time.Duration // Transcription round trip
	ReplyLatency time.Duration // Chat or research round trip
	TTSLatency   time.Duration // Synthesis round trip
	TotalLatency time.Duration // Whole turn

	Path     router.Path
	Keyword  string
	AudioIn  int // Uploaded bytes
	AudioOut int // Synthesized bytes
}

// turnTimer measures one turn. Not safe for concurrent use; each turn
// gets its own.
type turnTimer struct {
	m    Metrics
	mark time.Time
}

func newTurnTimer() *turnTimer {
	now := time.Now()
	return &turnTimer{m: Metrics{Start: now}, mark: now}
}

// lap returns the time since the previous lap.
func (t *turnTimer) lap() time.Duration {
	now := time.Now()
	d := now.Sub(t.mark)
	t.mark = now
	return d
}

func (t *turnTimer) done() Metrics {
	t.m.TotalLatency = time.Since(t.m.Start)
	return t.m
}

// MetricsCollector keeps recent turn metrics for averaging.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	history []Metrics
	limit   int
	turns   map[router.Path]int
}

// NewMetricsCollector creates a collector that remembers the last 100 turns.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
		limit:   100,
		turns:   make(map[router.Path]int),
	}
}

// Record archives a finished turn.
func (c *MetricsCollector) Record(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, m)
	if len(c.history) > c.limit {
		c.history = c.history[1:]
	}
	if m.Path == "" {
		c.turns[statsEmpty]++
	} else {
		c.turns[m.Path]++
	}
}

// statsEmpty is the by_path key for turns with nothing transcribed.
const statsEmpty = "empty"

// Stats summarizes recorded turns.
type Stats struct {
	Turns        int            `json:"turns"`
	ByPath       map[string]int `json:"by_path"`
	AvgSTTMs     int64          `json:"avg_stt_ms"`
	AvgReplyMs   int64          `json:"avg_reply_ms"`
	AvgTTSMs     int64          `json:"avg_tts_ms"`
	AvgTotalMs   int64          `json:"avg_total_ms"`
	WindowedOver int            `json:"windowed_over"`
}

// Stats returns lifetime turn counts and averages over recent turns.
func (c *MetricsCollector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{ByPath: make(map[string]int, len(c.turns)), WindowedOver: len(c.history)}
	for p, n := range c.turns {
		s.ByPath[string(p)] = n
		s.Turns += n
	}
	if len(c.history) == 0 {
		return s
	}

	var stt, reply, tts, total time.Duration
	for _, h := range c.history {
		stt += h.STTLatency
		reply += h.ReplyLatency
		tts += h.TTSLatency
		total += h.TotalLatency
	}
	n := time.Duration(len(c.history))
	s.AvgSTTMs = (stt / n).Milliseconds()
	s.AvgReplyMs = (reply / n).Milliseconds()
	s.AvgTTSMs = (tts / n).Milliseconds()
	s.AvgTotalMs = (total / n).Milliseconds()
	return s
}

// FormatLatency returns a one-line latency summary.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.STTLatency) + " STT | " +
		formatDuration(m.ReplyLatency) + " " + string(m.Path) + " | " +
		formatDuration(m.TTSLatency) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
