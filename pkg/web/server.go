// Package web serves the voice assistant over HTTP and WebSocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/teslashibe/sakshi/pkg/assistant"
	"github.com/teslashibe/sakshi/pkg/hub"
)

// DefaultBodyLimit bounds uploads.
const DefaultBodyLimit = 25 * 1024 * 1024

// Talker runs turns. *assistant.Pipeline implements it.
type Talker interface {
	Talk(ctx context.Context, req *assistant.TalkRequest) (*assistant.TalkResponse, error)
	ResearchAvailable() bool
	Metrics() *assistant.MetricsCollector
}

// Config configures the server.
type Config struct {
	Addr      string
	StaticDir string // Served at / when it exists
	TempDir   string // Upload spool directory
	BodyLimit int
	Logger    *slog.Logger
}

// Server is the HTTP surface of the assistant.
type Server struct {
	app      *fiber.App
	cfg      Config
	pipeline Talker
	events   *hub.Hub
	logger   *slog.Logger

	// Lifetime of websocket sessions and the events hub
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates the server and starts its events hub.
// Call Shutdown to release it.
func NewServer(pipeline Talker, cfg Config) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("web: pipeline is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   cfg.Logger.With("component", "web"),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.events = hub.New("events", cfg.Logger)
	go s.events.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "Sakshi Voice Agent",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(s.accessLog)
	app.Use(cors.New())

	app.Post("/talk", s.handleTalk)
	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/stats", s.handleStats)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_id", c.GetRespHeader(fiber.HeaderXRequestID))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/talk", websocket.New(s.handleTalkWS))
	app.Get("/ws/events", websocket.New(s.events.Serve))

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Static("/", cfg.StaticDir)
	} else if cfg.StaticDir != "" {
		s.logger.Warn("static directory not found, UI disabled", "dir", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the turn events hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "research", s.pipeline.ResearchAvailable())
		errc <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		s.cancel()
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.Shutdown()
	}
}

// Shutdown stops the server, its websocket sessions and the events hub.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

// accessLog logs every request with its request id and latency.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
		err = nil
	}

	attrs := []any{
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if route, ok := c.Locals(localTurnPath).(string); ok && route != "" {
		attrs = append(attrs, "route", route)
	}
	s.logger.Info("request", attrs...)
	return err
}

// errorHandler renders every error as {"detail": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}
