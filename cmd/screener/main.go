package main

import (
	"context"
	"fmt"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/pricepulse/internal/archive"
	"github.com/sawpanic/pricepulse/internal/bus"
	"github.com/sawpanic/pricepulse/internal/config"
	"github.com/sawpanic/pricepulse/internal/exchange"
	"github.com/sawpanic/pricepulse/internal/exchange/binance"
	"github.com/sawpanic/pricepulse/internal/exchange/bybit"
	"github.com/sawpanic/pricepulse/internal/exchange/gate"
	"github.com/sawpanic/pricepulse/internal/exchange/htx"
	"github.com/sawpanic/pricepulse/internal/exchange/okx"
	"github.com/sawpanic/pricepulse/internal/httpapi"
	"github.com/sawpanic/pricepulse/internal/ingest"
	applog "github.com/sawpanic/pricepulse/internal/log"
	"github.com/sawpanic/pricepulse/internal/notify"
	"github.com/sawpanic/pricepulse/internal/signal"
	"github.com/sawpanic/pricepulse/internal/store"
	"github.com/sawpanic/pricepulse/internal/watch"
)

const version = "v0.1.0"

func main() {
	applog.Setup(getEnvOr("LOG_LEVEL", "info"))

	rootCmd := &cobra.Command{
		Use:     "screener",
		Short:   "Real-time cryptocurrency price-movement screener",
		Version: version,
		RunE:    runScreener,
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runScreener(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURI)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer redisStore.Close()

	var alertArchive signal.Archive = archive.NoopArchive{}
	if cfg.ArchiveDSN != "" {
		pgArchive, err := archive.NewPostgresArchive(cfg.ArchiveDSN, 5*time.Second)
		if err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		defer pgArchive.Close()
		alertArchive = pgArchive
	}

	notifier := notify.New(redisStore, cfg.BotAPIKey, cfg.TargetIDs)

	maxPeriod := cfg.Lookbacks[0].Period
	for _, lb := range cfg.Lookbacks {
		if lb.Period > maxPeriod {
			maxPeriod = lb.Period
		}
	}

	evaluator := signal.New(redisStore, notifier, alertArchive, signal.Config{
		Lookbacks:     cfg.Lookbacks,
		PriceSubsets:  cfg.PriceSubsets,
		SignalTimeout: cfg.SignalTimeout,
	})

	tradeBus := bus.New(bus.DefaultCapacity)
	engine := ingest.New(redisStore, tradeBus, evaluator, ingest.Config{
		MaxPeriod:     maxPeriod,
		ClearInterval: cfg.ClearInterval,
	})

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Port = cfg.HTTPPort
	healthServer, err := httpapi.NewServer(httpCfg, redisStore, func() bool { return true })
	if err != nil {
		return fmt.Errorf("start health server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := healthServer.Start(); err != nil {
			serverErr <- err
		}
	}()

	go engine.Run(ctx)
	go watch.Run(ctx, tradeBus, engine)

	for _, name := range cfg.Exchanges {
		dialect := newDialect(name)
		if dialect == nil {
			log.Warn().Str("exchange", name).Msg("no dialect registered, skipping")
			continue
		}
		go exchange.Run(ctx, dialect, tradeBus)
	}

	log.Info().Strs("exchanges", cfg.Exchanges).Msg("screener started")

	quit := make(chan os.Signal, 1)
	osignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("health server error: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown error")
	}

	log.Info().Msg("screener shutdown complete")
	return nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newDialect(name string) exchange.Dialect {
	switch name {
	case "binance":
		return binance.New()
	case "bybit":
		return bybit.New()
	case "gate":
		return gate.New()
	case "htx":
		return htx.New()
	case "okx":
		return okx.New()
	default:
		return nil
	}
}
