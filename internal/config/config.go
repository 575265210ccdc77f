// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the binaries need.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	RedisURL      string
	UseMemory     bool

	// CallEntriesFile seeds the in-memory call entry store.
	CallEntriesFile string

	SolanaRPCEndpoint string

	BirdeyeAPIKey         string
	BirdeyeBaseURL        string
	GeckoTerminalBaseURL  string
	DexScreenerBaseURL    string
	DexScreenerFallback   bool
	ProviderTimeout       time.Duration
	ProviderRatePerSecond float64

	Concurrency    int
	MaxConcurrency int
	InterMintDelay time.Duration
	ForceRefresh   bool

	HTTPAddr string
	APIKey   string
	LogLevel string

	TracingEnabled bool
	OTLPEndpoint   string
}

// LoadDotEnv loads .env from the working directory if present. Existing
// environment variables win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}
}

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		ClickhouseDSN:     strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN")),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		SolanaRPCEndpoint: strings.TrimSpace(os.Getenv("SOLANA_RPC_ENDPOINT")),
		BirdeyeAPIKey:     strings.TrimSpace(os.Getenv("BIRDEYE_API_KEY")),
		OTLPEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	cfg.UseMemory = envBool("USE_MEMORY", false)
	cfg.CallEntriesFile = strings.TrimSpace(os.Getenv("CALL_ENTRIES_FILE"))
	if cfg.PostgresDSN == "" && !cfg.UseMemory {
		log.Println("Warning: POSTGRES_DSN not set")
	}
	if cfg.BirdeyeAPIKey == "" {
		log.Println("Warning: BIRDEYE_API_KEY not set, premium candles disabled")
	}

	cfg.BirdeyeBaseURL = envString("BIRDEYE_BASE_URL", "https://public-api.birdeye.so")
	cfg.GeckoTerminalBaseURL = envString("GECKOTERMINAL_BASE_URL", "https://api.geckoterminal.com/api/v2")
	cfg.DexScreenerBaseURL = envString("DEXSCREENER_BASE_URL", "https://api.dexscreener.com")
	cfg.DexScreenerFallback = envBool("DEXSCREENER_FALLBACK", true)

	cfg.ProviderTimeout = time.Duration(envInt("PROVIDER_TIMEOUT_SECS", 8)) * time.Second
	cfg.ProviderRatePerSecond = 5
	if v := strings.TrimSpace(os.Getenv("PROVIDER_RATE_PER_SEC")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ProviderRatePerSecond = f
		}
	}

	cfg.Concurrency = envInt("BACKFILL_CONCURRENCY", 10)
	cfg.MaxConcurrency = envInt("BACKFILL_MAX_CONCURRENCY", 32)
	cfg.InterMintDelay = time.Duration(envInt("BACKFILL_INTER_MINT_DELAY_MS", 250)) * time.Millisecond
	cfg.ForceRefresh = envBool("BACKFILL_FORCE_REFRESH", false)

	cfg.HTTPAddr = envString("HTTP_ADDR", ":8080")
	cfg.APIKey = strings.TrimSpace(os.Getenv("CONTROL_API_KEY"))
	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	if cfg.LogLevel != "info" && cfg.LogLevel != "debug" {
		log.Printf("Warning: unsupported LOG_LEVEL=%q, defaulting to info", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)

	return cfg
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns a positive integer from key, or def.
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}
