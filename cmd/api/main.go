// Package main is the entry point for the klose-3xpay relay service.
//
// It loads configuration, builds the HTTP server with the core chassis
// (middleware, routing, health check), wires the gateway adapter and the
// postback relay into the handlers, and listens for requests. Graceful
// shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"klose3xpay/internal/api/handlers"
	"klose3xpay/internal/config"
	"klose3xpay/internal/core"
	"klose3xpay/internal/gateway"
	"klose3xpay/internal/postback"
)

// shutdownTimeout bounds how long in-flight requests (including a postback
// delivery mid-retry) may run after a shutdown signal.
const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("klose-3xpay service starting",
		"environment", cfg.Environment,
		"gateway_mode", cfg.Gateway.AuthMode,
		"port", cfg.Server.Port,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	gw := gateway.New(cfg.Gateway, logger)
	relay := postback.NewRelay(cfg.Postback, logger)

	pixHandler := handlers.NewPixHandler(gw, srv.Validator, logger)
	webhookHandler := handlers.NewThreexPayWebhookHandler(relay, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		func(r chi.Router) { pixHandler.RegisterRoutes(r) },
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// newLogger builds the process-wide structured logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
