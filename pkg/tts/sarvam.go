package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/sakshi/internal/httpc"
	"github.com/teslashibe/sakshi/pkg/probe"
)

const (
	sarvamBaseURL  = "https://api.sarvam.ai"
	providerSarvam = "sarvam"
)

// Sarvam model IDs
const (
	// ModelBulbulV3 is the current Sarvam voice model.
	ModelBulbulV3 = "bulbul:v3"

	// ModelBulbulV2 is the previous generation model.
	ModelBulbulV2 = "bulbul:v2"
)

// Sarvam implements Provider for the Sarvam AI text-to-speech API.
type Sarvam struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewSarvam creates a new Sarvam TTS provider.
func NewSarvam(opts ...Option) (*Sarvam, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ModelID == "" {
		cfg.ModelID = ModelBulbulV3
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = sarvamBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &Sarvam{
		config:  cfg,
		client:  client,
		logger:  cfg.Logger.With("component", "tts.sarvam"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to speech and returns the first audio payload.
func (s *Sarvam) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerSarvam, ErrNoText)
	}
	start := time.Now()

	body, err := json.Marshal(s.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("api-subscription-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("synthesize request: %w", err))
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, parseSarvamError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("read response: %w", err))
	}

	encoded := ExtractAudio(raw)
	result := &AudioResult{
		Encoded: encoded,
		Format: AudioFormat{
			Encoding:   EncodingWAV,
			SampleRate: SampleRateFromEncoding(EncodingWAV),
			Channels:   1,
			BitDepth:   16,
		},
		CharCount: len(text),
		LatencyMs: latency,
	}
	if audio, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		result.Audio = audio
		result.Duration = wavDuration(audio)
	} else {
		s.logger.Warn("audio payload is not base64", "error", err)
	}

	s.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(result.Audio),
		"latency_ms", latency,
		"model", s.config.ModelID,
		"speaker", s.config.Speaker,
	)

	return result, nil
}

// Health reports nil for a configured provider; Sarvam has no account
// endpoint to probe.
func (s *Sarvam) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(providerSarvam, err)
	}
	return nil
}

// Close releases resources held by the provider.
func (s *Sarvam) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// buildPayload constructs the API request payload.
func (s *Sarvam) buildPayload(text string) map[string]any {
	payload := map[string]any{
		"text":                 text,
		"target_language_code": s.config.Language,
		"model":                s.config.ModelID,
	}
	if s.config.Speaker != "" {
		payload["speaker"] = s.config.Speaker
	}
	return payload
}

// parseSarvamError reads and parses an error response.
func parseSarvamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
		Detail any `json:"detail"`
	}

	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Error.Message != "":
			message = errResp.Error.Message
			code = errResp.Error.Code
		case errResp.Detail != nil:
			message = probe.Stringify(errResp.Detail)
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerSarvam,
	}
}

// wavDuration reads the byte rate from a canonical 44-byte WAV header.
func wavDuration(audio []byte) time.Duration {
	if len(audio) < 44 || string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return 0
	}
	byteRate := int(audio[28]) | int(audio[29])<<8 | int(audio[30])<<16 | int(audio[31])<<24
	if byteRate == 0 {
		return 0
	}
	return time.Duration(float64(len(audio)-44) / float64(byteRate) * float64(time.Second))
}

// Verify Sarvam implements Provider at compile time.
var _ Provider = (*Sarvam)(nil)
