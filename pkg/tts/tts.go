// Package tts provides a unified interface for text-to-speech providers.
//
// The assistant speaks through Sarvam (Indian-English voices) by default,
// with ElevenLabs as an alternative. Both return a complete clip; the
// base64 form is kept alongside the raw bytes because that is what the
// browser client plays back.
//
// Example usage:
//
//	provider, _ := tts.NewSarvam(
//	    tts.WithAPIKey(os.Getenv("SARVAM_API_KEY")),
//	    tts.WithSpeaker("shubh"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	// result.Encoded is ready to send to the client
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/sakshi/pkg/probe"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// An empty Encoded payload means no audio is available, not an error.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the decoded audio data, if it could be decoded.
	Audio []byte

	// Encoded is the base64 audio payload, empty when the provider
	// returned nothing usable.
	Encoded string

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// Empty reports whether the result carries no playable audio.
func (r *AudioResult) Empty() bool {
	return r == nil || r.Encoded == ""
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., wav, mp3_44100_128).
	Encoding Encoding

	// SampleRate in Hz (e.g., 22050, 44100).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingWAV is a RIFF container (Sarvam's output).
	EncodingWAV Encoding = "wav"

	// PCM formats (raw audio)
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16
	EncodingPCM44 Encoding = "pcm_44100" // 44.1kHz mono PCM16

	// Compressed formats
	EncodingMP3 Encoding = "mp3_44100_128" // MP3 128kbps
)

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22, EncodingWAV:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// AudioPaths are probed in order when a response has no audios list.
var AudioPaths = []string{"audio", "audio_base64", "data.audio"}

// ExtractAudio returns the base64 audio payload of a provider response.
// The first entry of "audios" wins; otherwise AudioPaths are probed.
// Returns "" when nothing resolves.
func ExtractAudio(resp any) string {
	m := probe.ToMap(resp)
	if list, ok := m["audios"].([]any); ok && len(list) > 0 && !probe.IsEmpty(list[0]) {
		return probe.Stringify(list[0])
	}
	return probe.PickFirst(m, AudioPaths)
}

// Provider names accepted by New.
const (
	NameSarvam     = providerSarvam
	NameElevenLabs = providerElevenLabs
)

// New builds the provider registered under name.
func New(name string, opts ...Option) (Provider, error) {
	switch name {
	case NameSarvam, "":
		return NewSarvam(opts...)
	case NameElevenLabs:
		return NewElevenLabs(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
