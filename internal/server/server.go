// Package server exposes the relay handler over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/arbitraryexecution/forta-relay/internal/config"
	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// Relay is the part of the relay handler the server drives.
type Relay interface {
	HandleRaw(ctx context.Context, raw []byte) (models.Result, error)
	Handle(ctx context.Context, ev *models.InboundEvent) (models.Result, error)
}

// ServerOptions holds the dependencies of a Server.
type ServerOptions struct {
	Config    *config.Config
	Relay     Relay
	Logger    *slog.Logger
	BuildInfo string
	Version   string
}

// Server represents the HTTP server.
type Server struct {
	app       *fiber.App
	config    *config.Config
	relay     Relay
	log       *slog.Logger
	buildInfo string
	version   string
	startedAt time.Time
}

// New creates a Server and registers its routes.
func New(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    opts.Config,
		relay:     opts.Relay,
		log:       logger.With("component", "server"),
		buildInfo: opts.BuildInfo,
		version:   opts.Version,
		startedAt: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "fortarelay",
		ReadTimeout:           opts.Config.Server.ReadTimeout,
		WriteTimeout:          opts.Config.Server.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.requestLogger)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/metrics", s.handleMetrics)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.handleHealth)
	api.Get("/meta", s.handleGetMeta)
	api.Post("/autotask", s.handleAutotask)
	api.Post("/alerts", s.handleAlertWebhook)
}

// requestLogger logs each finished request at debug, failures at warn.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	attrs := []any{
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	}
	if err != nil || status >= fiber.StatusBadRequest {
		s.log.Warn("request failed", append(attrs, "error", err)...)
	} else {
		s.log.Debug("request", attrs...)
	}
	return err
}

// Start listens on the configured address. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("http server listening", "address", s.config.Server.Address)
	if err := s.app.Listen(s.config.Server.Address); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
