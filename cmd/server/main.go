package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/DUBIX17/dubix-stt3/external/config"
	eventsimpl "github.com/DUBIX17/dubix-stt3/external/events"
	"github.com/DUBIX17/dubix-stt3/external/httpapi"
	relayimpl "github.com/DUBIX17/dubix-stt3/external/relay"
	repositoryimpl "github.com/DUBIX17/dubix-stt3/external/repository"
	transcriberimpl "github.com/DUBIX17/dubix-stt3/external/transcriber"
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	relaypkg "github.com/DUBIX17/dubix-stt3/internal/relay"
	"github.com/DUBIX17/dubix-stt3/internal/session"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/joho/godotenv"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using process environment")
	}

	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	runService(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	transcript.RegisterDI(injector)
	relaypkg.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	eventsimpl.RegisterDI(injector)
	relayimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runService(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	publisher, err := do.Invoke[*eventsimpl.KafkaPublisher](injector)
	if err != nil {
		slog.Error("failed to resolve event publisher", "error", err)
		os.Exit(1)
	}
	forwarder, err := do.Invoke[*relayimpl.Forwarder](injector)
	if err != nil {
		slog.Error("failed to resolve relay forwarder", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("startup: listening", "addr", cfg.HTTPAddr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	drained := manager.FinalizeAll(session.FinalizeReasonShutdown)
	slog.Info("shutdown complete", "drained_sessions", drained)

	if err := publisher.Close(); err != nil {
		slog.Error("failed to close kafka publisher", "error", err)
	}
	if err := forwarder.Close(); err != nil {
		slog.Error("failed to close relay upstream", "error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
