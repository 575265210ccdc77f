// Package main runs a single extremum backfill to completion:
// load eligible call entries, fetch candles per mint, compute and persist
// extremum records. SIGINT/SIGTERM stops the job after in-flight mints.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-call-tracker/internal/app"
	"solana-call-tracker/internal/backfill"
	"solana-call-tracker/internal/config"
	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/observability"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	// Flags override environment
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string for extremum snapshots (optional)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	entriesFile := flag.String("entries-file", cfg.CallEntriesFile, "JSON file of call entries to seed in-memory storage")
	concurrency := flag.Int("concurrency", cfg.Concurrency, "Number of mints processed in parallel")
	forceRefresh := flag.Bool("force-refresh", cfg.ForceRefresh, "Recompute entries that already show a gain")
	flag.Parse()

	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	cfg.CallEntriesFile = *entriesFile
	cfg.Concurrency = *concurrency

	logger := log.New(os.Stdout, "[cli] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		tp.Shutdown(shutdownCtx)
	}()

	a, err := app.Build(ctx, cfg, tracer, app.NewLogger(os.Stdout))
	if err != nil {
		logger.Fatalf("Failed to build backfill: %v", err)
	}
	defer a.Close()

	runID, err := a.Controller.Start(ctx, backfill.Options{
		Concurrency:  cfg.Concurrency,
		ForceRefresh: *forceRefresh,
	})
	if err != nil {
		logger.Fatalf("Failed to start backfill: %v", err)
	}
	logger.Printf("Run %s started", runID)

	// First signal stops gracefully, second exits
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping after in-flight mints...", sig)
		a.Controller.Stop()

		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	if err := a.Controller.Wait(ctx); err != nil {
		logger.Fatalf("Wait: %v", err)
	}

	state := a.Controller.Progress()
	logger.Printf("Run %s %s: %d/%d mints, %d updated, %d errors, %d skipped",
		state.RunID, state.Status, state.ProcessedMints, state.TotalMints,
		state.UpdatedCount, state.ErrorCount, state.SkippedCount)

	if state.Status == domain.JobStatusError {
		logger.Printf("Last error: %s", state.LastError)
		a.Close()
		os.Exit(1)
	}
}
