// Package signal implements the per-market, per-look-back signal
// evaluator: min/max/percent-change computation, trend classification,
// and the armed/active signal-latch state machine.
package signal

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/store"
	"github.com/sawpanic/pricepulse/internal/trade"
)

// fiveMinutes is the boundary worker.py's TTL fallback formula keys
// off: a look-back shorter than this keeps its own period as the
// latch TTL, otherwise the latch TTL is halved.
const fiveMinutes = 5 * time.Minute

// Evaluator is the signal evaluator described in spec §4.F.
type Evaluator struct {
	store    store.Store
	notifier Notifier
	archive  Archive
	cfg      Config
}

// New builds an Evaluator. archive may be nil (or a no-op) when alert
// archiving is not configured.
func New(s store.Store, notifier Notifier, archive Archive, cfg Config) *Evaluator {
	return &Evaluator{store: s, notifier: notifier, archive: archive, cfg: cfg}
}

// Evaluate runs every configured look-back for marketKey, applying the
// signal state machine and emitting alert requests as needed.
func (e *Evaluator) Evaluate(ctx context.Context, marketKey string) error {
	now := time.Now()
	exchange, symbol, err := trade.SplitMarketKey(marketKey)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", marketKey, err)
	}

	for _, lb := range e.cfg.Lookbacks {
		if err := e.evaluateLookback(ctx, marketKey, exchange, symbol, lb, now); err != nil {
			log.Error().Err(err).Str("market", marketKey).Dur("period", lb.Period).Msg("look-back evaluation failed")
		}
	}
	return nil
}

func (e *Evaluator) evaluateLookback(ctx context.Context, marketKey, exchange, symbol string, lb Lookback, now time.Time) error {
	startMS := now.Add(-lb.Period).UnixMilli()
	nowMS := now.UnixMilli()

	points, err := e.store.Range(ctx, marketKey, startMS, nowMS)
	if err != nil {
		return fmt.Errorf("range prices: %w", err)
	}
	if len(points) < e.cfg.PriceSubsets {
		return nil
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Value
	}

	minP, maxP := minMax(prices)
	if minP == 0 {
		return nil
	}

	pct := roundTo1(((maxP - minP) / minP) * 100)
	isUp := isUptrend(prices, e.cfg.PriceSubsets)

	signalsKey := marketKey + "_signals"
	before24h := now.Add(-24 * time.Hour).UnixMilli()
	signalPoints, err := e.store.Range(ctx, signalsKey, before24h, nowMS)
	if err != nil {
		return fmt.Errorf("range signals: %w", err)
	}
	signals24h := len(signalPoints)

	signalKey := fmt.Sprintf("%s_%d_last_percent", marketKey, int(lb.Period.Seconds()))
	latch, hasLatch, err := e.store.Get(ctx, signalKey)
	if err != nil {
		return fmt.Errorf("get latch: %w", err)
	}

	threshold := lb.Threshold
	req := AlertRequest{
		MarketKey:  marketKey,
		Exchange:   exchange,
		Symbol:     symbol,
		Period:     lb.Period,
		Percent:    pct,
		IsUptrend:  isUp,
		MinPrice:   minP,
		MaxPrice:   maxP,
		Signals24h: signals24h,
	}

	if !hasLatch {
		if math.Abs(pct) <= threshold {
			return nil
		}
		req.Update = false
		if err := e.store.Set(ctx, signalKey, formatPercent(pct), e.cfg.SignalTimeout); err != nil {
			return fmt.Errorf("set latch: %w", err)
		}
		if err := e.store.Add(ctx, signalsKey, nowMS, 1, store.DuplicateLast); err != nil {
			return fmt.Errorf("append signal series: %w", err)
		}
		return e.emit(ctx, req)
	}

	latchPct, err := strconv.ParseFloat(latch, 64)
	if err != nil {
		return fmt.Errorf("parse latch value %q: %w", latch, err)
	}
	if math.Abs(pct) <= math.Abs(latchPct) {
		return nil
	}

	ttl, hasTTL, err := e.store.TTL(ctx, signalKey)
	if err != nil {
		return fmt.Errorf("get latch ttl: %w", err)
	}
	if !hasTTL || ttl <= 0 {
		ttl = defaultLatchTTL(lb.Period)
	}

	req.Update = true
	if err := e.store.Set(ctx, signalKey, formatPercent(pct), ttl); err != nil {
		return fmt.Errorf("refresh latch: %w", err)
	}
	return e.emit(ctx, req)
}

func (e *Evaluator) emit(ctx context.Context, req AlertRequest) error {
	if err := e.notifier.Notify(ctx, req); err != nil {
		log.Error().Err(err).Str("market", req.MarketKey).Msg("notify failed")
	}
	if e.archive != nil {
		if err := e.archive.Record(ctx, req); err != nil {
			log.Error().Err(err).Str("market", req.MarketKey).Msg("archive failed")
		}
	}
	return nil
}

// isUptrend partitions prices into subsets equal-sized groups
// (trailing remainder discarded), compares adjacent group means, and
// returns true iff increases strictly outnumber decreases.
func isUptrend(prices []float64, subsets int) bool {
	subsetSize := len(prices) / subsets
	if subsetSize == 0 {
		return false
	}

	means := make([]float64, 0, subsets)
	for i := 0; i < subsets; i++ {
		group := prices[i*subsetSize : (i+1)*subsetSize]
		var sum float64
		for _, v := range group {
			sum += v
		}
		means = append(means, sum/float64(len(group)))
	}

	var increases, decreases int
	for i := 1; i < len(means); i++ {
		switch {
		case means[i] > means[i-1]:
			increases++
		case means[i] < means[i-1]:
			decreases++
		}
	}
	return increases > decreases
}

func minMax(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 1, 64)
}

// defaultLatchTTL mirrors worker.py's fallback: short look-backs keep
// their own period as the refresh TTL, longer ones get halved.
func defaultLatchTTL(period time.Duration) time.Duration {
	if period < fiveMinutes {
		return period
	}
	return period / 2
}
