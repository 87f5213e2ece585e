package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/sakshi/internal/httpc"
	"github.com/teslashibe/sakshi/pkg/probe"
)

const (
	sarvamBaseURL  = "https://api.sarvam.ai"
	providerSarvam = "sarvam"
)

// Sarvam implements Provider for the Sarvam AI speech-to-text API.
type Sarvam struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewSarvam creates a new Sarvam STT provider.
func NewSarvam(opts ...Option) (*Sarvam, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
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
		logger:  cfg.Logger.With("component", "stt.sarvam"),
		baseURL: baseURL,
	}, nil
}

// Name returns the provider identifier.
func (s *Sarvam) Name() string {
	return providerSarvam
}

// Transcribe uploads the clip and extracts the transcript from the response.
func (s *Sarvam) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	start := time.Now()

	body, contentType, err := s.buildForm(audio, opts)
	if err != nil {
		return nil, WrapError(providerSarvam, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/speech-to-text", body)
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("api-subscription-key", s.config.APIKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("transcribe request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseSarvamError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerSarvam, fmt.Errorf("read response: %w", err))
	}

	view := probe.ToMap(raw)
	tr := &Transcript{
		Text:      ExtractTranscript(view),
		Language:  probe.PickFirst(view, []string{"language_code", "language"}),
		RequestID: probe.PickFirst(view, []string{"request_id"}),
		Raw:       view,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	s.logger.Debug("transcribed audio",
		"chars", len(tr.Text),
		"language", tr.Language,
		"request_id", tr.RequestID,
		"latency_ms", tr.LatencyMs,
		"model", s.config.ModelID,
	)

	return tr, nil
}

// Close releases resources held by the provider.
func (s *Sarvam) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// buildForm writes the multipart request body.
func (s *Sarvam) buildForm(audio io.Reader, opts TranscribeOptions) (io.Reader, string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrNoAudio
	}

	filename := filepath.Base(opts.Filename)
	if opts.Filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = DefaultFilename
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType(filename))
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", s.config.ModelID},
		{"mode", s.config.Mode},
		{"language_code", opts.Language},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
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

// Verify Sarvam implements Provider at compile time.
var _ Provider = (*Sarvam)(nil)
