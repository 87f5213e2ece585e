// Sakshi - voice chat assistant
//
// Serves a browser client that records a clip, uploads it to /talk and
// plays back the spoken reply. Turns mentioning youtube, search, google
// or wikipedia go to the research agent; everything else goes straight
// to the chat model.
//
// Usage:
//
//	go run ./cmd/sakshi
//	go run ./cmd/sakshi -addr :9000 -no-research
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/sakshi/internal/config"
	"github.com/teslashibe/sakshi/internal/log"
	"github.com/teslashibe/sakshi/pkg/assistant"
	"github.com/teslashibe/sakshi/pkg/inference"
	"github.com/teslashibe/sakshi/pkg/journal"
	"github.com/teslashibe/sakshi/pkg/research"
	"github.com/teslashibe/sakshi/pkg/router"
	"github.com/teslashibe/sakshi/pkg/search"
	"github.com/teslashibe/sakshi/pkg/stt"
	"github.com/teslashibe/sakshi/pkg/tts"
	"github.com/teslashibe/sakshi/pkg/web"
)

var (
	addr       = flag.String("addr", "", "listen address (overrides ADDR)")
	logLevel   = flag.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	envFile    = flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	noResearch = flag.Bool("no-research", false, "disable the research agent")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sakshi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *noResearch {
		cfg.Research.Enabled = false
	}

	log.Init(cfg.LogLevel, cfg.LogFormat)
	logger := log.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	speech, err := stt.NewSarvam(
		stt.WithAPIKey(cfg.Speech.APIKey),
		stt.WithBaseURL(cfg.Speech.BaseURL),
		stt.WithModel(cfg.Speech.STTModel),
		stt.WithMode(cfg.Speech.STTMode),
		stt.WithLogger(log.Component("stt")),
	)
	if err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	defer speech.Close()

	voice, err := newVoice(cfg.Speech)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	defer voice.Close()

	model, err := inference.NewAnthropic(
		inference.WithAPIKey(cfg.Chat.APIKey),
		inference.WithBaseURL(cfg.Chat.BaseURL),
		inference.WithModel(cfg.Chat.Model),
		inference.WithMaxTokens(cfg.Chat.MaxTokens),
		inference.WithLogger(log.Component("inference")),
	)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	defer model.Close()

	opts := []assistant.Option{
		assistant.WithMetrics(assistant.NewMetricsCollector()),
		assistant.WithLogger(log.L()),
	}

	agent, err := newResearcher(ctx, cfg.Research, model)
	if err != nil {
		// Fall back to chat-only turns.
		logger.Warn("research unavailable", "error", err)
	}
	opts = append(opts, assistant.WithRouter(router.New(agent != nil)))
	if agent != nil {
		opts = append(opts, assistant.WithResearcher(agent))
		logger.Info("research enabled", "tools", agent.ToolNames())
	}

	chat := assistant.NewChat(model,
		assistant.WithChatModel(cfg.Chat.Model),
		assistant.WithChatMaxTokens(cfg.Chat.MaxTokens),
		assistant.WithChatLogger(log.L()),
	)
	pipeline, err := assistant.NewPipeline(speech, voice, chat, opts...)
	if err != nil {
		return err
	}

	server, err := web.NewServer(pipeline, web.Config{
		Addr:      cfg.Addr,
		StaticDir: cfg.StaticDir,
		TempDir:   cfg.TempDir,
		Logger:    log.L(),
	})
	if err != nil {
		return err
	}

	logger.Info("sakshi starting",
		"addr", cfg.Addr,
		"tts", cfg.Speech.TTSProvider,
		"chat_model", cfg.Chat.Model,
		"research", agent != nil,
	)
	return server.Run(ctx)
}

func newVoice(cfg config.Speech) (tts.Provider, error) {
	opts := []tts.Option{
		tts.WithModel(cfg.TTSModel),
		tts.WithLogger(log.Component("tts")),
	}
	switch cfg.TTSProvider {
	case tts.NameElevenLabs:
		opts = append(opts, tts.WithAPIKey(cfg.ElevenLabsKey))
		if cfg.ElevenLabsVoice != "" {
			opts = append(opts, tts.WithVoice(cfg.ElevenLabsVoice))
		}
	default:
		opts = append(opts,
			tts.WithAPIKey(cfg.APIKey),
			tts.WithBaseURL(cfg.BaseURL),
			tts.WithSpeaker(cfg.TTSSpeaker),
			tts.WithLanguage(cfg.TTSLanguage),
		)
	}
	return tts.New(cfg.TTSProvider, opts...)
}

// newResearcher returns nil without error when research is disabled.
func newResearcher(ctx context.Context, cfg config.Research, model inference.Provider) (*research.Agent, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tools := research.ToolsConfig{
		Wiki: search.NewWikipedia("", nil),
	}

	if cfg.GoogleSearchConfigured() {
		google, err := search.NewGoogle(ctx, search.GoogleConfig{APIKey: cfg.GoogleAPIKey, EngineID: cfg.GoogleCSEID})
		if err != nil {
			return nil, err
		}
		tools.Web = google
	} else {
		tools.Web = search.NewDuckDuckGo("", nil)
	}

	if cfg.GoogleAPIKey != "" {
		yt, err := search.NewYouTube(ctx, search.GoogleConfig{APIKey: cfg.GoogleAPIKey})
		if err != nil {
			return nil, err
		}
		tools.YouTube = yt
	}

	out, err := journal.New(cfg.OutputDir, cfg.OutputFile)
	if err != nil {
		return nil, err
	}
	tools.Journal = out

	return research.NewAgent(model, research.Tools(tools),
		research.WithModel(cfg.Model),
		research.WithMaxTokens(cfg.MaxTokens),
		research.WithMaxSteps(cfg.MaxSteps),
		research.WithLogger(log.L()),
	)
}
