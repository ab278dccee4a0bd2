// Package bus implements the bounded, multi-producer single-consumer
// trade queue that carries normalised batches from every exchange
// adapter to the ingestion engine.
package bus

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/trade"
)

// DefaultCapacity is used when callers do not size the bus explicitly.
// Sized generously: below 500 buffered batches the ingestion engine's
// back-pressure multiplier is zero, so ordinary venue bursts never
// widen the dedupe window.
const DefaultCapacity = 4096

// Bus is an in-process queue from adapters (producers) to the
// ingestion engine (the single consumer). Publish never blocks: a
// full bus drops the batch and logs an advisory warning instead of
// stalling the producing adapter, per spec.
type Bus struct {
	ch chan trade.Batch
}

// New creates a Bus with the given capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan trade.Batch, capacity)}
}

// Publish enqueues a batch without blocking. Ordering is FIFO per
// producer but not globally ordered across producers, since each
// adapter calls Publish independently.
func (b *Bus) Publish(batch trade.Batch) {
	select {
	case b.ch <- batch:
	default:
		log.Warn().
			Str("exchange", batch.Exchange).
			Int("trades", len(batch.Data)).
			Msg("trade bus full, dropping batch")
	}
}

// Messages returns the receive side of the bus for the ingestion
// engine's consumer loop.
func (b *Bus) Messages() <-chan trade.Batch {
	return b.ch
}

// Depth reports the number of batches currently buffered. The
// ingestion engine derives its back-pressure multiplier from this.
func (b *Bus) Depth() int {
	return len(b.ch)
}

// Close closes the underlying channel. Only the supervisor that owns
// every producer should call this, after all adapters have stopped.
func (b *Bus) Close() {
	close(b.ch)
}
