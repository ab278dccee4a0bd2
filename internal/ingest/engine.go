// Package ingest implements the single-consumer loop that drains the
// trade bus, applies the dedupe/back-pressure rules, and persists
// accepted prices into the time-series store.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/bus"
	"github.com/sawpanic/pricepulse/internal/store"
	"github.com/sawpanic/pricepulse/internal/trade"
)

// Evaluator is the subset of the signal evaluator the engine depends
// on. Defined here, not in internal/signal, so ingest never needs to
// import the evaluator's package directly.
type Evaluator interface {
	Evaluate(ctx context.Context, marketKey string) error
}

// marketState is the in-memory, single-owner record of one market's
// ingestion progress. Only the consumer goroutine touches it.
type marketState struct {
	price       float64
	timestampMS int64
	savedTS     int64
	checkTS     time.Time
	clearTS     time.Time
}

// Engine is the ingestion engine described in spec §4.E: it owns the
// per-market state map outright (no locking on the hot path) and is
// driven by a single goroutine via Run.
type Engine struct {
	store         store.Store
	bus           *bus.Bus
	evaluator     Evaluator
	priceRetention time.Duration
	maxPeriod     time.Duration
	clearInterval time.Duration

	markets map[string]*marketState

	tradesProcessed int64
	trackedMarkets  int64
}

// Config bundles the retention knobs the engine derives from
// SIGNAL_THRESHOLDS and CLEAR_INTERVAL.
type Config struct {
	// MaxPeriod is the largest configured look-back period; it sizes
	// both the price-series retention and the retention-trim window.
	MaxPeriod time.Duration
	// ClearInterval is the minimum gap between retention trims for a
	// given market.
	ClearInterval time.Duration
}

// New builds an Engine over store s and bus b, invoking eval for the
// last-touched market after each batch.
func New(s store.Store, b *bus.Bus, eval Evaluator, cfg Config) *Engine {
	return &Engine{
		store:          s,
		bus:            b,
		evaluator:      eval,
		priceRetention: cfg.MaxPeriod,
		maxPeriod:      cfg.MaxPeriod,
		clearInterval:  cfg.ClearInterval,
		markets:        make(map[string]*marketState),
	}
}

// Run drains the bus until ctx is cancelled or the bus is closed.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-e.bus.Messages():
			if !ok {
				return
			}
			e.ingestBatch(ctx, batch)
		}
	}
}

func (e *Engine) ingestBatch(ctx context.Context, batch trade.Batch) {
	m := backpressureMultiplier(e.bus.Depth())
	now := time.Now()

	var lastMarketKey string
	for _, rec := range batch.Data {
		marketKey := trade.MarketKey(batch.Exchange, rec.Symbol)
		lastMarketKey = marketKey

		state := e.stateFor(ctx, marketKey)
		atomic.AddInt64(&e.tradesProcessed, 1)

		if e.shouldDedupe(state, rec, now, m) {
			continue
		}

		if err := e.store.Add(ctx, marketKey, rec.TimestampMS, rec.Price, store.DuplicateLast); err != nil {
			log.Error().Err(err).Str("market", marketKey).Msg("failed to persist price")
			continue
		}
		state.savedTS = rec.TimestampMS
		state.price = rec.Price
		state.timestampMS = rec.TimestampMS
	}

	if lastMarketKey == "" {
		return
	}

	if err := e.maybeEvaluate(ctx, lastMarketKey, now, m); err != nil {
		log.Error().Err(err).Str("market", lastMarketKey).Msg("signal evaluation failed")
	}
	e.maybeTrim(ctx, lastMarketKey, now)
}

// backpressureMultiplier computes M = (queue_depth // 500) / 10
// seconds, widening the dedupe window as the bus backs up.
func backpressureMultiplier(depth int) time.Duration {
	return time.Duration(depth/500) * 100 * time.Millisecond
}

func (e *Engine) shouldDedupe(state *marketState, rec trade.Record, now time.Time, m time.Duration) bool {
	if state.price == rec.Price {
		return true
	}
	if state.savedTS == rec.TimestampMS {
		return true
	}
	cutoff := now.Add(-m).UnixMilli()
	return state.savedTS > cutoff
}

func (e *Engine) stateFor(ctx context.Context, marketKey string) *marketState {
	if s, ok := e.markets[marketKey]; ok {
		return s
	}

	s := &marketState{}
	e.markets[marketKey] = s
	atomic.AddInt64(&e.trackedMarkets, 1)

	if err := e.store.CreateSeries(ctx, marketKey, e.priceRetention, store.DuplicateLast); err != nil {
		log.Error().Err(err).Str("market", marketKey).Msg("failed to create price series")
	}
	if err := e.store.CreateSeries(ctx, signalSeriesKey(marketKey), 24*time.Hour, store.DuplicateLast); err != nil {
		log.Error().Err(err).Str("market", marketKey).Msg("failed to create signal series")
	}
	return s
}

// maybeEvaluate enforces spec §4.F's guard: skip if
// check_ts > now - max(1s, M), where M is the current back-pressure
// multiplier.
func (e *Engine) maybeEvaluate(ctx context.Context, marketKey string, now time.Time, m time.Duration) error {
	state, ok := e.markets[marketKey]
	if !ok {
		return nil
	}
	guard := m
	if guard < time.Second {
		guard = time.Second
	}
	if !state.checkTS.IsZero() && now.Sub(state.checkTS) < guard {
		return nil
	}
	state.checkTS = now
	return e.evaluator.Evaluate(ctx, marketKey)
}

func (e *Engine) maybeTrim(ctx context.Context, marketKey string, now time.Time) {
	state, ok := e.markets[marketKey]
	if !ok {
		return
	}
	if !state.clearTS.IsZero() && now.Sub(state.clearTS) < e.clearInterval {
		return
	}
	state.clearTS = now

	windowStart := now.Add(-24 * time.Hour).UnixMilli()
	windowEnd := now.Add(-e.maxPeriod).UnixMilli()
	if err := e.store.Delete(ctx, marketKey, windowStart, windowEnd); err != nil {
		log.Error().Err(err).Str("market", marketKey).Msg("failed to trim price series")
	}

	signalWindowStart := now.Add(-7 * 24 * time.Hour).UnixMilli()
	if err := e.store.Delete(ctx, signalSeriesKey(marketKey), signalWindowStart, windowStart); err != nil {
		log.Error().Err(err).Str("market", marketKey).Msg("failed to trim signal series")
	}
}

func signalSeriesKey(marketKey string) string {
	return marketKey + "_signals"
}

// TradesProcessed reports the running count of individual trades the
// engine has handled, for the state watcher's throughput log line.
func (e *Engine) TradesProcessed() int64 {
	return atomic.LoadInt64(&e.tradesProcessed)
}

// TrackedMarkets reports the number of distinct markets the engine has
// ever observed.
func (e *Engine) TrackedMarkets() int64 {
	return atomic.LoadInt64(&e.trackedMarkets)
}
