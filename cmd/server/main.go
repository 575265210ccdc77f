// Package main runs the backfill control server: HTTP endpoints to start and
// stop a backfill, poll or stream its progress, plus health and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"solana-call-tracker/internal/api"
	"solana-call-tracker/internal/app"
	"solana-call-tracker/internal/config"
	"solana-call-tracker/internal/observability"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	cfg.HTTPAddr = *addr
	cfg.UseMemory = *useMemory

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.APIKey == "" {
		logger.Println("Warning: CONTROL_API_KEY not set, /backfill routes are unauthenticated")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, tracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatalf("Failed to init tracing: %v", err)
	}

	componentLogger := app.NewLogger(os.Stdout)
	a, err := app.Build(ctx, cfg, tracer, componentLogger)
	if err != nil {
		logger.Fatalf("Failed to build backfill: %v", err)
	}
	defer a.Close()

	handler := api.New(a.Controller, api.Options{APIKey: cfg.APIKey, Logger: componentLogger})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	if a.Controller.Stop() {
		logger.Println("Stopping running backfill after in-flight mints...")
	}
	if err := a.Controller.Wait(shutdownCtx); err != nil {
		logger.Printf("Backfill did not stop in time: %v", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Tracer shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}
