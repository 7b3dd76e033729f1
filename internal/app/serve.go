package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"whalewatch/internal/server"
	"whalewatch/internal/version"
)

// Serve runs the HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.store != nil && a.Config.Database.RunMigrations {
		applied, err := c.store.Migrate(ctx)
		if err != nil {
			return err
		}
		a.Logger.Info().Strs("migrations", applied).Msg("database migrations applied")
	}

	deps := server.Deps{
		Ingester:   c.sink,
		Activity:   c.chain,
		Narratives: c.narratives,
		Addresses:  c.classifier,
		Metrics:    c.metrics.Handler(),
	}
	if c.store != nil {
		deps.Health = c.store
	}

	cfg := a.Config.Server
	api := server.New(deps, server.Options{
		BearerToken:    cfg.BearerToken,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		IngestRPS:      cfg.IngestRPS,
		IngestBurst:    cfg.IngestBurst,
		MaxRecentLimit: a.Config.Retrieval.MaxLimit,
	}, a.Logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", cfg.Addr).Str("version", version.Version).Bool("durable", c.sink.Durable()).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownTimeout := cfg.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("http server terminated with error")
		return err
	}
	a.Logger.Info().Msg("http server stopped")
	return nil
}

func versionString() string {
	return version.Version
}
