// Package app wires configuration into a ready backfill controller. Both
// binaries build their dependencies through it.
package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"solana-call-tracker/internal/backfill"
	"solana-call-tracker/internal/config"
	"solana-call-tracker/internal/marketdata"
	"solana-call-tracker/internal/solana"
	"solana-call-tracker/internal/storage"
	chstore "solana-call-tracker/internal/storage/clickhouse"
	"solana-call-tracker/internal/storage/memory"
	"solana-call-tracker/internal/storage/migrations"
	pgstore "solana-call-tracker/internal/storage/postgres"
)

// Stores groups the storage used by the backfill.
type Stores struct {
	Entries   storage.CallEntryStore
	Extrema   storage.ExtremumStore
	Snapshots storage.SnapshotStore // nil when no snapshot sink is configured
}

// App holds the wired components.
type App struct {
	Stores     Stores
	Chain      *marketdata.Chain
	Controller *backfill.Controller

	closers []func()
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger returns the logger handed to components. Components tag their
// own lines ("[backfill] ...", "[api] ..."), so it carries no prefix.
func NewLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.LstdFlags)
}

// maxWorkers is the most workers one run may use.
func maxWorkers(cfg *config.Config) int {
	if cfg.MaxConcurrency > 0 {
		return cfg.MaxConcurrency
	}
	return backfill.DefaultMaxConcurrency
}

// Build connects storage, optional Redis and Solana RPC, and assembles the
// provider chain, processor and controller. On error everything opened so
// far is closed.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *log.Logger) (*App, error) {
	a := &App{}

	stores, err := a.openStores(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Stores = stores

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = marketdata.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { rdb.Close() })
		logger.Printf("[app] Pool cache backed by Redis at %s", cfg.RedisURL)
	}

	pools := marketdata.NewPoolCache(rdb)
	a.Chain = marketdata.NewDefaultChain(marketdata.ChainConfig{
		BirdeyeAPIKey:        cfg.BirdeyeAPIKey,
		BirdeyeBaseURL:       cfg.BirdeyeBaseURL,
		GeckoTerminalBaseURL: cfg.GeckoTerminalBaseURL,
		DexScreenerBaseURL:   cfg.DexScreenerBaseURL,
		DexScreenerFallback:  cfg.DexScreenerFallback,
	}, pools, marketdata.Options{
		Timeout:       cfg.ProviderTimeout,
		RatePerSecond: cfg.ProviderRatePerSecond,
		Tracer:        tracer,
		Logger:        logger,
		Debug:         cfg.Debug(),
	})

	var supply solana.SupplyClient
	if cfg.SolanaRPCEndpoint != "" {
		supply = solana.NewHTTPClient(cfg.SolanaRPCEndpoint)
	} else {
		logger.Println("[app] SOLANA_RPC_ENDPOINT not set, market caps limited to recorded supply")
	}

	processor := backfill.NewProcessor(backfill.ProcessorOptions{
		Assembler: backfill.NewAssembler(a.Chain),
		Extrema:   stores.Extrema,
		Snapshots: stores.Snapshots,
		Supply:    supply,
		Tracer:    tracer,
		Logger:    logger,
		Debug:     cfg.Debug(),
	})

	a.Controller = backfill.NewController(backfill.ControllerOptions{
		Entries:            stores.Entries,
		Processor:          processor,
		DefaultConcurrency: cfg.Concurrency,
		MaxConcurrency:     maxWorkers(cfg),
		InterMintDelay:     cfg.InterMintDelay,
		RunCaches:          []backfill.RunCache{pools},
		Logger:             logger,
	})
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (Stores, error) {
	if cfg.UseMemory {
		extrema := memory.NewExtremumStore()
		entries := memory.NewCallEntryStore(extrema)
		if cfg.CallEntriesFile != "" {
			n, err := LoadCallEntries(ctx, cfg.CallEntriesFile, entries)
			if err != nil {
				return Stores{}, err
			}
			logger.Printf("[app] Loaded %d call entries from %s", n, cfg.CallEntriesFile)
		}
		logger.Println("[app] Using in-memory storage")
		return Stores{Entries: entries, Extrema: extrema, Snapshots: memory.NewSnapshotStore()}, nil
	}

	if cfg.PostgresDSN == "" {
		return Stores{}, fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY is set")
	}

	// One connection per worker plus headroom for the eligibility query.
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, int32(maxWorkers(cfg)+2))
	if err != nil {
		return Stores{}, err
	}
	a.closers = append(a.closers, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return Stores{}, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := Stores{
		Entries: pgstore.NewCallEntryStore(pool),
		Extrema: pgstore.NewExtremumStore(pool),
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return Stores{}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.closers = append(a.closers, func() { conn.Close() })
		stores.Snapshots = chstore.NewSnapshotStore(conn)
		logger.Println("[app] Extremum snapshots written to ClickHouse")
	}
	return stores, nil
}
