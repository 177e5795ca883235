package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	server          *tcp.Server
	store           store.ReportStore
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init report store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("report store initialized")

	reg := core.NewRegistry()
	dir := core.NewDirectory(reg)
	bus := core.NewBus(cfg.ClientBuffer)
	server := tcp.NewServer(cfg.Addr, reg, dir, bus, st, logger)

	return &App{
		server:          server,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run binds the listener and blocks until context cancellation or a fatal
// accept error. Bind failure is returned immediately.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Listen(); err != nil {
		a.cleanup()
		return err
	}
	a.log.Info().Str("addr", a.server.Addr()).Msg("listening")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Serve(ctx)
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
		select {
		case err := <-serverErr:
			a.cleanup()
			return err
		case <-time.After(a.shutdownTimeout):
			a.cleanup()
			return fmt.Errorf("shutdown timed out after %s", a.shutdownTimeout)
		}
	}
}

// cleanup closes the report store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close report store")
		} else {
			a.log.Info().Msg("report store closed")
		}
	}
}
