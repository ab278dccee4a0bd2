// Package watch implements the passive state watcher: a ticker that
// periodically logs bus depth, trade throughput, and tracked-market
// count without participating in the ingestion or evaluation path.
package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/bus"
)

// Engine is the subset of the ingestion engine's counters the watcher
// observes.
type Engine interface {
	TradesProcessed() int64
	TrackedMarkets() int64
}

const tickInterval = 10 * time.Second

// Run logs one info line every tickInterval until ctx is cancelled.
func Run(ctx context.Context, b *bus.Bus, e Engine) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var lastProcessed int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed := e.TradesProcessed()
			delta := processed - lastProcessed
			lastProcessed = processed

			throughput := float64(delta) / tickInterval.Seconds()

			log.Info().
				Int("bus_depth", b.Depth()).
				Float64("trades_per_sec", throughput).
				Int64("tracked_markets", e.TrackedMarkets()).
				Msg("screener state")
		}
	}
}
