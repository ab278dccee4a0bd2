// Package config loads the screener's configuration from environment
// variables, following the project's existing convention of plain
// os.Getenv reads rather than a file-based settings layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/pricepulse/internal/signal"
)

// Config is the fully-resolved, validated configuration for one
// screener process.
type Config struct {
	Exchanges        []string
	Lookbacks        []signal.Lookback
	PriceSubsets     int
	SignalTimeout    time.Duration
	ClearInterval    time.Duration
	TargetIDs        []int64
	BotAPIKey        string
	RedisURI         string
	ArchiveDSN       string
	HTTPPort         int
}

var knownExchanges = map[string]bool{
	"binance": true,
	"bybit":   true,
	"gate":    true,
	"htx":     true,
	"okx":     true,
}

// Load reads and validates configuration from the process environment.
// It fails fast on any missing or malformed required setting, matching
// the original system's behaviour of refusing to start with a broken
// configuration rather than degrading silently.
func Load() (Config, error) {
	var cfg Config
	var err error

	cfg.Exchanges, err = parseExchanges(getenv("EXCHANGES", "binance,bybit,gate,htx,okx"))
	if err != nil {
		return Config{}, err
	}

	cfg.Lookbacks, err = parseSignalThresholds(getenv("SIGNAL_THRESHOLDS", "1,2.0;5,1.5"))
	if err != nil {
		return Config{}, err
	}

	cfg.PriceSubsets, err = parseIntEnv("PRICE_SUBSETS", 5)
	if err != nil {
		return Config{}, err
	}
	if cfg.PriceSubsets < 2 {
		return Config{}, fmt.Errorf("PRICE_SUBSETS must be >= 2, got %d", cfg.PriceSubsets)
	}

	timeoutSeconds, err := parseIntEnv("SIGNAL_TIMEOUT", 120)
	if err != nil {
		return Config{}, err
	}
	cfg.SignalTimeout = time.Duration(timeoutSeconds) * time.Second

	clearSeconds, err := parseIntEnv("CLEAR_INTERVAL", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.ClearInterval = time.Duration(clearSeconds) * time.Second

	cfg.TargetIDs, err = parseTargetIDs(os.Getenv("TARGET_IDS"))
	if err != nil {
		return Config{}, err
	}
	if len(cfg.TargetIDs) == 0 {
		return Config{}, fmt.Errorf("TARGET_IDS must name at least one chat id")
	}

	cfg.BotAPIKey = os.Getenv("BOT_API_KEY")
	if cfg.BotAPIKey == "" {
		return Config{}, fmt.Errorf("BOT_API_KEY is required")
	}

	cfg.RedisURI = getenv("REDIS_URI", "redis://127.0.0.1:6379/0")
	cfg.ArchiveDSN = os.Getenv("ARCHIVE_DSN")

	cfg.HTTPPort, err = parseIntEnv("HTTP_PORT", 8080)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return v, nil
}

func parseExchanges(raw string) ([]string, error) {
	var exchanges []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		if !knownExchanges[name] {
			return nil, fmt.Errorf("EXCHANGES: unknown venue %q", name)
		}
		exchanges = append(exchanges, name)
	}
	if len(exchanges) == 0 {
		return nil, fmt.Errorf("EXCHANGES must name at least one venue")
	}
	return exchanges, nil
}

// parseSignalThresholds parses "period_minutes,threshold_percent"
// pairs separated by ';', e.g. "1,2.0;5,1.5;15,1.0".
func parseSignalThresholds(raw string) ([]signal.Lookback, error) {
	var lookbacks []signal.Lookback
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("SIGNAL_THRESHOLDS: malformed pair %q, want \"period,threshold\"", pair)
		}
		minutes, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("SIGNAL_THRESHOLDS: invalid period in %q: %w", pair, err)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("SIGNAL_THRESHOLDS: invalid threshold in %q: %w", pair, err)
		}
		lookbacks = append(lookbacks, signal.Lookback{
			Period:    time.Duration(minutes * float64(time.Minute)),
			Threshold: threshold,
		})
	}
	if len(lookbacks) == 0 {
		return nil, fmt.Errorf("SIGNAL_THRESHOLDS must configure at least one look-back")
	}
	return lookbacks, nil
}

func parseTargetIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TARGET_IDS: invalid chat id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
