// Package config loads the sakshi runtime configuration.
//
// Configuration is read once at startup into an immutable Config value and
// passed explicitly to each component. Nothing else in the module reads the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAddr            = ":8000"
	DefaultStaticDir       = "./static"
	DefaultSTTModel        = "saaras:v3"
	DefaultSTTMode         = "transcribe"
	DefaultTTSProvider     = "sarvam"
	DefaultTTSModel        = "bulbul:v3"
	DefaultTTSLanguage     = "en-IN"
	DefaultTTSSpeaker      = "shubh"
	DefaultChatModel       = "claude-3-haiku-20240307"
	DefaultChatMaxTokens   = 512
	DefaultResearchModel   = "claude-3-5-sonnet-20241022"
	DefaultResearchTokens  = 1024
	DefaultResearchSteps   = 8
	DefaultResearchOutFile = "research_output.txt"
)

var (
	// ErrMissingSpeechKey is returned when SARVAM_API_KEY is not set.
	ErrMissingSpeechKey = errors.New("config: set SARVAM_API_KEY in your environment")

	// ErrMissingChatKey is returned when ANTHROPIC_API_KEY is not set.
	ErrMissingChatKey = errors.New("config: set ANTHROPIC_API_KEY in your environment")
)

// Config is the root configuration.
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string
	StaticDir string
	TempDir   string

	Speech   Speech
	Chat     Chat
	Research Research
}

// Speech configures the STT and TTS providers.
type Speech struct {
	APIKey  string
	BaseURL string

	STTModel string
	STTMode  string

	// TTSProvider is "sarvam" or "elevenlabs".
	TTSProvider string
	TTSModel    string
	TTSLanguage string
	TTSSpeaker  string

	ElevenLabsKey   string
	ElevenLabsVoice string
}

// Chat configures the conversational model used by the direct chat path.
type Chat struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Research configures the optional research agent.
type Research struct {
	Enabled   bool
	Model     string
	MaxTokens int
	MaxSteps  int

	GoogleAPIKey string
	GoogleCSEID  string

	OutputDir  string
	OutputFile string
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file.
// Variables already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config using getenv to resolve variables.
func FromLookup(getenv func(string) string) (Config, error) {
	e := env(getenv)

	cfg := Config{
		Addr:      e.str("ADDR", DefaultAddr),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", ""),
		StaticDir: e.str("STATIC_DIR", DefaultStaticDir),
		TempDir:   e.str("TEMP_DIR", os.TempDir()),
		Speech: Speech{
			APIKey:          e.str("SARVAM_API_KEY", ""),
			BaseURL:         e.str("SARVAM_BASE_URL", ""),
			STTModel:        e.str("STT_MODEL", DefaultSTTModel),
			STTMode:         e.str("STT_MODE", DefaultSTTMode),
			TTSProvider:     strings.ToLower(e.str("TTS_PROVIDER", DefaultTTSProvider)),
			TTSModel:        e.str("TTS_MODEL", DefaultTTSModel),
			TTSLanguage:     e.str("TTS_LANGUAGE", DefaultTTSLanguage),
			TTSSpeaker:      strings.ToLower(e.str("TTS_SPEAKER", DefaultTTSSpeaker)),
			ElevenLabsKey:   e.str("ELEVENLABS_API_KEY", ""),
			ElevenLabsVoice: e.str("ELEVENLABS_VOICE_ID", ""),
		},
		Chat: Chat{
			APIKey:    e.str("ANTHROPIC_API_KEY", ""),
			BaseURL:   e.str("ANTHROPIC_BASE_URL", ""),
			Model:     e.str("CHAT_MODEL", DefaultChatModel),
			MaxTokens: e.int("CHAT_MAX_TOKENS", DefaultChatMaxTokens),
		},
		Research: Research{
			Enabled:      e.bool("RESEARCH_ENABLED", true),
			Model:        e.str("RESEARCH_MODEL", DefaultResearchModel),
			MaxTokens:    e.int("RESEARCH_MAX_TOKENS", DefaultResearchTokens),
			MaxSteps:     e.int("RESEARCH_MAX_STEPS", DefaultResearchSteps),
			GoogleAPIKey: e.str("GOOGLE_API_KEY", ""),
			GoogleCSEID:  e.str("GOOGLE_CSE_ID", ""),
			OutputDir:    e.str("RESEARCH_OUTPUT_DIR", "."),
			OutputFile:   e.str("RESEARCH_OUTPUT_FILE", DefaultResearchOutFile),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the required secrets are present and values are sane.
func (c Config) Validate() error {
	if c.Speech.APIKey == "" {
		return ErrMissingSpeechKey
	}
	if c.Chat.APIKey == "" {
		return ErrMissingChatKey
	}
	switch c.Speech.TTSProvider {
	case "sarvam":
	case "elevenlabs":
		if c.Speech.ElevenLabsKey == "" {
			return errors.New("config: TTS_PROVIDER=elevenlabs requires ELEVENLABS_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown TTS_PROVIDER %q", c.Speech.TTSProvider)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("config: CHAT_MAX_TOKENS must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.Research.MaxSteps <= 0 {
		return fmt.Errorf("config: RESEARCH_MAX_STEPS must be positive, got %d", c.Research.MaxSteps)
	}
	return nil
}

// GoogleSearchConfigured reports whether the Custom Search backend can be used.
func (r Research) GoogleSearchConfigured() bool {
	return r.GoogleAPIKey != "" && r.GoogleCSEID != ""
}

type env func(string) string

func (e env) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

func (e env) int(key string, def int) int {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (e env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
