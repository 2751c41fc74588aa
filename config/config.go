// Package config loads runtime configuration from environment variables
// (and an optional .env file), following the same getEnv-helper pattern
// the rest of this codebase's corpus uses for bot configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RiskConfig mirrors spec.md §4.6's risk-limit parameters.
type RiskConfig struct {
	MaxConcentrationPct decimal.Decimal
	StopLossPct         decimal.Decimal
	TakeProfitPct       decimal.Decimal
	KillSwitch          bool
}

// Config is the composition root's fully resolved runtime configuration.
type Config struct {
	Debug  bool
	DryRun bool

	// SSI broker
	SSIBaseURL      string
	SSIConsumerID   string
	SSIConsumerSecret string
	SSIPrivateKeyPath string

	// Market data
	MarketDataWSURL string
	Watchlist       []string

	// Storage
	DuckDBPath        string
	ParquetExportDir  string
	MaxConcurrentDB   int

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Agent pipeline
	ScoreThreshold decimal.Decimal
	NAV            decimal.Decimal

	// Resilience
	SyncInterval       time.Duration
	FlushInterval      time.Duration
	IngestBufferSize   int
	BrokerMaxRetries   int
	CircuitBreakerTrip int

	Risk RiskConfig
}

// Load reads .env (if present, silently ignored otherwise) and then the
// process environment, applying defaults for anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("🔍 no .env file found, relying on process environment")
	}

	cfg := &Config{
		Debug:  getEnvBool("DEBUG", false),
		DryRun: getEnvBool("DRY_RUN", true),

		SSIBaseURL:        getEnv("SSI_BASE_URL", "https://fc-tradeapi.ssi.com.vn"),
		SSIConsumerID:     os.Getenv("SSI_CONSUMER_ID"),
		SSIConsumerSecret: os.Getenv("SSI_CONSUMER_SECRET"),
		SSIPrivateKeyPath: os.Getenv("SSI_PRIVATE_KEY_PATH"),

		MarketDataWSURL: getEnv("MARKET_DATA_WS_URL", "wss://fc-datafeed.ssi.com.vn/ws"),
		Watchlist:       getEnvList("WATCHLIST", []string{"FPT", "HPG", "VNM", "VCB", "MWG"}),

		DuckDBPath:       getEnv("DUCKDB_PATH", "data/vnalgo.duckdb"),
		ParquetExportDir: getEnv("PARQUET_EXPORT_DIR", "data/parquet"),
		MaxConcurrentDB:  getEnvInt("MAX_CONCURRENT_DB", 4),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		ScoreThreshold: getEnvDecimal("SCORE_THRESHOLD", decimal.NewFromInt(5)),
		NAV:            getEnvDecimal("NAV", decimal.NewFromInt(1_000_000_000)),

		SyncInterval:       getEnvDuration("SYNC_INTERVAL", 2*time.Second),
		FlushInterval:      getEnvDuration("FLUSH_INTERVAL", 1*time.Second),
		IngestBufferSize:   getEnvInt("INGEST_BUFFER_SIZE", 100_000),
		BrokerMaxRetries:   getEnvInt("BROKER_MAX_RETRIES", 3),
		CircuitBreakerTrip: getEnvInt("CIRCUIT_BREAKER_TRIP", 5),

		Risk: RiskConfig{
			MaxConcentrationPct: getEnvDecimal("RISK_MAX_CONCENTRATION_PCT", decimal.NewFromFloat(0.30)),
			StopLossPct:         getEnvDecimal("RISK_STOP_LOSS_PCT", decimal.NewFromFloat(0.07)),
			TakeProfitPct:       getEnvDecimal("RISK_TAKE_PROFIT_PCT", decimal.NewFromFloat(0.15)),
			KillSwitch:          getEnvBool("RISK_KILL_SWITCH", false),
		},
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if !cfg.DryRun {
		if cfg.SSIConsumerID == "" || cfg.SSIConsumerSecret == "" || cfg.SSIPrivateKeyPath == "" {
			return nil, fmt.Errorf("config: SSI_CONSUMER_ID, SSI_CONSUMER_SECRET, and SSI_PRIVATE_KEY_PATH are required when DRY_RUN is false")
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
