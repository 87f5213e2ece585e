package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/sakshi/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Synthesize encodes audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Empty() {
			t.Error("expected base64 payload")
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		calls := mock.Calls()
		if len(calls) != 3 {
			t.Errorf("expected 3 calls, got %d", len(calls))
		}
		if mock.CallCount("Synthesize") != 2 {
			t.Errorf("expected 2 Synthesize calls, got %d", mock.CallCount("Synthesize"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	t.Run("Synthesize returns error", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, "Hello")
		if err == nil {
			t.Error("expected error")
		}
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Health returns error", func(t *testing.T) {
		err := mock.Health(ctx)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.NewMock()
	mock = tts.WithLatency(mock, 50*time.Millisecond)
	ctx := context.Background()

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(ctx, "Hello")
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := mock.Synthesize(ctx, "Hello")
		if err == nil {
			t.Error("expected context deadline error")
		}
	})
}

func TestDefaultVoiceSettings(t *testing.T) {
	settings := tts.DefaultVoiceSettings()

	if settings.Stability != 0.5 {
		t.Errorf("expected stability 0.5, got %f", settings.Stability)
	}
	if settings.SimilarityBoost != 0.75 {
		t.Errorf("expected similarity 0.75, got %f", settings.SimilarityBoost)
	}
	if settings.Style != 0.0 {
		t.Errorf("expected style 0.0, got %f", settings.Style)
	}
	if !settings.SpeakerBoost {
		t.Error("expected speaker boost true")
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice("test-voice"),
		tts.WithModel("test-model"),
		tts.WithTimeout(5*time.Second),
		tts.WithOutputFormat(tts.EncodingMP3),
	)

	if cfg.VoiceID != "test-voice" {
		t.Errorf("expected voice test-voice, got %s", cfg.VoiceID)
	}
	if cfg.ModelID != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.ModelID)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.OutputFormat != tts.EncodingMP3 {
		t.Errorf("expected MP3 format, got %s", cfg.OutputFormat)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); err != tts.ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("Validate passes with API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.ValidateWithVoice(); err != tts.ErrNoVoiceID {
			t.Errorf("expected ErrNoVoiceID, got %v", err)
		}
	})

	t.Run("ValidateWithVoice passes with both", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		cfg.VoiceID = "test-voice"
		if err := cfg.ValidateWithVoice(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("IsRateLimited", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 429, Message: "rate limited"}
		if !err.IsRateLimited() {
			t.Error("expected IsRateLimited true")
		}
		if err.IsUnauthorized() {
			t.Error("expected IsUnauthorized false")
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 401, Message: "unauthorized"}
		if !err.IsUnauthorized() {
			t.Error("expected IsUnauthorized true")
		}
	})

	t.Run("IsServerError", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			err := &tts.APIError{StatusCode: code}
			if !err.IsServerError() {
				t.Errorf("expected IsServerError true for %d", code)
			}
		}
	})

	t.Run("Error message format", func(t *testing.T) {
		err := &tts.APIError{
			StatusCode: 400,
			Message:    "bad request",
			Code:       "invalid_input",
			Provider:   "elevenlabs",
		}
		msg := err.Error()
		if msg != "tts [elevenlabs]: API error 400 (invalid_input): bad request" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		encoding   tts.Encoding
		sampleRate int
	}{
		{tts.EncodingPCM16, 16000},
		{tts.EncodingPCM22, 22050},
		{tts.EncodingPCM24, 24000},
		{tts.EncodingPCM44, 44100},
		{tts.EncodingMP3, 44100},
		{tts.EncodingWAV, 22050},
	}

	for _, tt := range tests {
		t.Run(string(tt.encoding), func(t *testing.T) {
			rate := tts.SampleRateFromEncoding(tt.encoding)
			if rate != tt.sampleRate {
				t.Errorf("expected %d, got %d", tt.sampleRate, rate)
			}
		})
	}
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("elevenlabs", inner)

	if err == nil {
		t.Fatal("expected error")
	}

	if err.Error() != "tts [elevenlabs]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	// Unwrap should return inner error
	var pe *tts.ProviderError
	if !errors.As(err, &pe) {
		t.Error("expected ProviderError")
	}
	if pe.Provider != "elevenlabs" {
		t.Errorf("expected provider elevenlabs, got %s", pe.Provider)
	}
}

func TestExtractAudio(t *testing.T) {
	tests := []struct {
		name string
		resp any
		want string
	}{
		{"first of audios", map[string]any{"audios": []any{"AAA", "BBB"}}, "AAA"},
		{"empty audios falls back", map[string]any{"audios": []any{}, "audio": "CCC"}, "CCC"},
		{"audio_base64", map[string]any{"audio_base64": "DDD"}, "DDD"},
		{"nested data.audio", `{"data":{"audio":"EEE"}}`, "EEE"},
		{"nothing", map[string]any{"request_id": "x"}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tts.ExtractAudio(tt.resp); got != tt.want {
				t.Errorf("ExtractAudio() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSarvam(t *testing.T) {
	ctx := context.Background()
	wav := base64.StdEncoding.EncodeToString([]byte("RIFF-fake-wave"))

	var got map[string]any
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("api-subscription-key")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"request_id": "r1", "audios": []string{wav}})
	}))
	defer srv.Close()

	p, err := tts.NewSarvam(tts.WithAPIKey("key"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewSarvam: %v", err)
	}
	defer p.Close()

	t.Run("Synthesize sends voice parameters", func(t *testing.T) {
		result, err := p.Synthesize(ctx, "Namaste")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Encoded != wav {
			t.Errorf("expected first audio payload, got %q", result.Encoded)
		}
		if string(result.Audio) != "RIFF-fake-wave" {
			t.Errorf("unexpected decoded audio %q", result.Audio)
		}
		if gotKey != "key" {
			t.Errorf("expected subscription key header, got %q", gotKey)
		}
		want := map[string]string{
			"text":                 "Namaste",
			"target_language_code": "en-IN",
			"speaker":              "shubh",
			"model":                tts.ModelBulbulV3,
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("payload %s = %v, want %s", k, got[k], v)
			}
		}
	})

	t.Run("blank text is rejected", func(t *testing.T) {
		if _, err := p.Synthesize(ctx, "  "); !errors.Is(err, tts.ErrNoText) {
			t.Errorf("expected ErrNoText, got %v", err)
		}
	})
}

func TestSarvamEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r2","audios":[]}`))
	}))
	defer srv.Close()

	p, _ := tts.NewSarvam(tts.WithAPIKey("key"), tts.WithBaseURL(srv.URL))
	result, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("empty audio should not be an error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected empty result, got %q", result.Encoded)
	}
}

func TestSarvamAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Text too long","code":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, _ := tts.NewSarvam(tts.WithAPIKey("key"), tts.WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "hello")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Message != "Text too long" || apiErr.Provider != "sarvam" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestElevenLabs(t *testing.T) {
	var gotPath, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"bad key"}}`))
			return
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	t.Run("preset voice resolves and audio is encoded", func(t *testing.T) {
		p, err := tts.NewElevenLabs(tts.WithAPIKey("key"), tts.WithBaseURL(srv.URL), tts.WithVoice("rachel"))
		if err != nil {
			t.Fatalf("NewElevenLabs: %v", err)
		}
		result, err := p.Synthesize(context.Background(), "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPath != "/text-to-speech/"+tts.ElevenLabsVoices["rachel"] {
			t.Errorf("unexpected path %s", gotPath)
		}
		if gotFormat != string(tts.EncodingMP3) {
			t.Errorf("unexpected output format %s", gotFormat)
		}
		if result.Encoded != base64.StdEncoding.EncodeToString([]byte("mp3-bytes")) {
			t.Errorf("unexpected payload %q", result.Encoded)
		}
	})

	t.Run("default voice", func(t *testing.T) {
		p, _ := tts.NewElevenLabs(tts.WithAPIKey("key"), tts.WithBaseURL(srv.URL))
		if p.VoiceID() != tts.ElevenLabsVoices[tts.DefaultElevenLabsVoice] {
			t.Errorf("unexpected default voice %s", p.VoiceID())
		}
	})

	t.Run("API error", func(t *testing.T) {
		p, _ := tts.NewElevenLabs(tts.WithAPIKey("wrong"), tts.WithBaseURL(srv.URL))
		_, err := p.Synthesize(context.Background(), "Hello")
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() || apiErr.Code != "invalid_api_key" {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("sarvam by default", func(t *testing.T) {
		p, err := tts.New("", tts.WithAPIKey("k"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*tts.Sarvam); !ok {
			t.Errorf("expected *Sarvam, got %T", p)
		}
	})

	t.Run("elevenlabs", func(t *testing.T) {
		p, err := tts.New(tts.NameElevenLabs, tts.WithAPIKey("k"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*tts.ElevenLabs); !ok {
			t.Errorf("expected *ElevenLabs, got %T", p)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := tts.New("piper", tts.WithAPIKey("k")); !errors.Is(err, tts.ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})
}

func TestResolveElevenLabsVoice(t *testing.T) {
	if !tts.IsElevenLabsPreset("charlotte") {
		t.Error("expected charlotte to be a preset")
	}
	if got := tts.ResolveElevenLabsVoice("raw-voice-id"); got != "raw-voice-id" {
		t.Errorf("expected pass-through, got %s", got)
	}
}
