package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbitraryexecution/forta-relay/internal/config"
	"github.com/arbitraryexecution/forta-relay/internal/forta"
	"github.com/arbitraryexecution/forta-relay/internal/notify"
	"github.com/arbitraryexecution/forta-relay/internal/relay"
	"github.com/arbitraryexecution/forta-relay/internal/server"
)

// App represents the core application context, holding dependencies and configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Relay     *relay.Handler
	server    *server.Server
	BuildInfo string
	Version   string
}

// Options contains what is needed to create a new App instance.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	BuildInfo string
	Version   string
}

// New creates an App and builds the relay pipeline from its configuration.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config:    opts.Config,
		Logger:    logger,
		BuildInfo: opts.BuildInfo,
		Version:   opts.Version,
	}
	a.Relay = a.buildRelay()
	return a, nil
}

func (a *App) buildRelay() *relay.Handler {
	cfg := a.Config

	client := forta.NewClient(forta.ClientOptions{
		Endpoint: cfg.Forta.Endpoint,
		Timeout:  cfg.Forta.Timeout,
		Logger:   a.Logger,
	})
	correlator := forta.NewCorrelator(forta.CorrelatorOptions{
		Querier:      client,
		PageSize:     cfg.Forta.PageSize,
		ChainID:      cfg.Forta.ChainID,
		CreatedSince: cfg.Forta.CreatedSince,
		Logger:       a.Logger,
	})
	sender := notify.NewWebhookSender(notify.WebhookSenderOptions{
		Timeout:    cfg.Discord.Timeout,
		RetryDelay: cfg.Discord.RetryDelay,
		Logger:     a.Logger,
	})

	return relay.New(relay.Options{
		SecretName: cfg.Discord.SecretName,
		Correlator: correlator,
		Formatter:  notify.NewFormatter(cfg.Explorer.TxURL),
		Dispatcher: notify.NewDispatcher(sender, a.Logger),
		Logger:     a.Logger,
	})
}

// Initialize sets up the HTTP server in front of the relay.
func (a *App) Initialize() {
	a.server = server.New(server.ServerOptions{
		Config:    a.Config,
		Relay:     a.Relay,
		Logger:    a.Logger,
		BuildInfo: a.BuildInfo,
		Version:   a.Version,
	})
}

// Start begins the application's main execution loop (starts the HTTP server).
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server not initialized")
	}
	a.Logger.Info("starting server", "version", a.Version)
	return a.server.Start()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight invocations.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if a.server != nil {
		done := make(chan error, 1)
		go func() {
			done <- a.server.Shutdown(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.Logger.Error("error shutting down server", "error", err)
				return err
			}
			a.Logger.Info("HTTP server shut down successfully")
		case <-ctx.Done():
			a.Logger.Warn("timeout shutting down HTTP server")
			return ctx.Err()
		}
	}

	a.Logger.Info("application shutdown complete")
	return nil
}
