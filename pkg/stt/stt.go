// Package stt provides a unified interface for speech-to-text providers.
//
// Providers return a Transcript whose Text is the best-effort transcription.
// An empty Text is not an error: it means nothing intelligible was heard,
// and callers should treat it as a recognition failure.
//
// Example usage:
//
//	provider, _ := stt.NewSarvam(
//	    stt.WithAPIKey(cfg.Speech.APIKey),
//	    stt.WithModel("saaras:v3"),
//	)
//	defer provider.Close()
//
//	f, _ := os.Open("clip.webm")
//	tr, _ := provider.Transcribe(ctx, f, stt.TranscribeOptions{Filename: "clip.webm"})
package stt

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/teslashibe/sakshi/pkg/probe"
)

// Provider defines the STT provider interface.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts an audio clip to text.
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error)

	// Close releases any resources held by the provider.
	Close() error
}

// TranscribeOptions configures a single transcription.
type TranscribeOptions struct {
	// Filename is sent as the multipart file name. Its extension is the
	// format hint most providers use.
	Filename string

	// Language is an optional BCP-47 code (e.g. "en-IN"). Empty means
	// provider-side detection.
	Language string
}

// Transcript is the result of a transcription.
type Transcript struct {
	// Text is the extracted transcript, possibly empty.
	Text string

	// Language is the detected or requested language, if reported.
	Language string

	// RequestID is the provider's request identifier, if reported.
	RequestID string

	// Raw is the mapping view of the provider response.
	Raw map[string]any

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// Empty reports whether nothing usable was transcribed.
func (t *Transcript) Empty() bool {
	return t == nil || strings.TrimSpace(t.Text) == ""
}

// TranscriptPaths are probed in order to find the transcript in a provider
// response.
var TranscriptPaths = []string{
	"transcript",
	"text",
	"output",
	"results.transcript",
	"data.transcript",
}

// ExtractTranscript returns the first non-empty transcript field of a
// provider response, or "" when none resolves.
func ExtractTranscript(resp any) string {
	return probe.PickFirst(probe.ToMap(resp), TranscriptPaths)
}

// DefaultFilename is used when the caller does not name the upload.
const DefaultFilename = "audio.webm"

// contentType guesses a MIME type from the file extension.
func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".aac":
		return "audio/aac"
	default:
		return "audio/webm"
	}
}
