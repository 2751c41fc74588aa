// vnalgo is a systematic trading bot for Vietnamese equities (HOSE/HNX/
// UPCOM): it screens a watchlist, scores candidates with technical
// indicators, vetoes against portfolio risk limits, and places lot-rounded
// limit orders through a broker-signed REST API.
//
// Architecture: Screen -> Analyze -> Risk -> Execute, mirroring the
// teacher's own Strategy -> Risk -> Trade pipeline shape.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tranvietlong/vnalgo-core/agents"
	"github.com/tranvietlong/vnalgo-core/broker/ssi"
	"github.com/tranvietlong/vnalgo-core/config"
	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/ingestion"
	"github.com/tranvietlong/vnalgo-core/notify"
	"github.com/tranvietlong/vnalgo-core/oms"
	"github.com/tranvietlong/vnalgo-core/ports"
	"github.com/tranvietlong/vnalgo-core/storage"
	"github.com/tranvietlong/vnalgo-core/vo"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Bool("dry_run", cfg.DryRun).Msg("🚀 vnalgo starting...")

	store, err := storage.Open(cfg.DuckDBPath, cfg.MaxConcurrentDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open DuckDB store")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var brokerClient ports.Broker
	var marketData ports.MarketData
	if !cfg.DryRun {
		key, err := loadRSAPrivateKey(cfg.SSIPrivateKeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load SSI private key")
		}

		httpClient := resty.New().SetBaseURL(cfg.SSIBaseURL).SetTimeout(10 * time.Second)
		creds := ssi.Credentials{ConsumerID: cfg.SSIConsumerID, ConsumerSecret: cfg.SSIConsumerSecret, PrivateKey: key}
		auth := ssi.NewAuthenticator(httpClient, cfg.SSIBaseURL, creds)
		brokerClient = ssi.NewClient(httpClient, cfg.SSIBaseURL, auth, key)

		stream := ssi.NewMarketDataStream(cfg.MarketDataWSURL)
		marketData = stream
	} else {
		log.Info().Msg("🧪 dry-run: broker and market data feed are not connected")
	}

	watchlist := make([]vo.Symbol, 0, len(cfg.Watchlist))
	for _, sym := range cfg.Watchlist {
		watchlist = append(watchlist, vo.Symbol(sym))
	}

	var notifier ports.Notifier
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("📡 failed to initialize telegram notifier, continuing without alerts")
		} else {
			notifier = tg
		}
	}

	audit, err := agents.NewAuditLog("data/audit.log")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audit log")
	}
	defer audit.Close()

	riskLimits := domain.RiskLimit{
		MaxPositionPct:   cfg.Risk.MaxConcentrationPct,
		KillSwitchActive: cfg.Risk.KillSwitch,
		StopLossPct:      cfg.Risk.StopLossPct,
		TakeProfitPct:    cfg.Risk.TakeProfitPct,
	}

	screener := agents.NewScreenerAgent(nil, store)
	technical := agents.NewTechnicalAgent(store)
	risk := agents.NewRiskAgent(riskLimits)
	executor := agents.NewExecutorAgent(brokerClient, store, store, riskLimits)
	supervisor := agents.NewSupervisor(screener, technical, nil, risk, executor, audit)

	if marketData != nil {
		pipeline := ingestion.NewPipeline(marketData, store, cfg.IngestBufferSize, cfg.FlushInterval)
		go func() {
			if err := pipeline.Run(ctx, watchlist); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("🛑 ingestion pipeline exited unexpectedly")
			}
		}()
	}

	if brokerClient != nil {
		synchronizer := oms.NewSynchronizer(brokerClient, store, cfg.SyncInterval)
		go synchronizer.Run(ctx)
	}

	go runPruneLoop(ctx, store)
	go runPipelineLoop(ctx, supervisor, cfg, watchlist, notifier)

	log.Info().Msg("✅ all services started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 shutting down...")
	cancel()

	if marketData != nil {
		if err := marketData.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing market data stream")
		}
	}

	log.Info().Msg("👋 goodbye")
}

// runPipelineLoop drives one supervisor pass per tick, the agent pipeline's
// analogue to the teacher's market-manager loop.
func runPipelineLoop(ctx context.Context, supervisor *agents.Supervisor, cfg *config.Config, watchlist []vo.Symbol, notifier ports.Notifier) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
			initial := agents.State{
				Watchlist:                    watchlist,
				MaxCandidates:                20,
				ScoreThreshold:               cfg.ScoreThreshold,
				DryRun:                       cfg.DryRun,
				CurrentNAV:                   cfg.NAV,
				ScreenerVolumeSpikeThreshold: decimal.NewFromInt(2),
			}
			final := supervisor.Run(ctx, runID, initial)
			if final.ErrorMessage != "" && notifier != nil {
				notifier.NotifyRiskEvent(final.ErrorMessage)
			}
		}
	}
}

// runPruneLoop periodically evicts expired idempotency records so the
// idempotency_keys table doesn't grow unbounded.
func runPruneLoop(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.PruneExpired(ctx, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Msg("idempotency prune failed")
			}
		}
	}
}

func loadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}
