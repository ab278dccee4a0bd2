// Package exchange drives one WebSocket connection per venue through a
// shared state machine, delegating venue-specific URL, subscribe
// payload, and frame-decode behaviour to a Dialect implementation.
package exchange

import (
	"context"

	"github.com/sawpanic/pricepulse/internal/trade"
)

// Dialect captures everything that differs between venues: discovery
// endpoint and filter, WebSocket URL, subscribe payload shape, and
// frame decoding. internal/exchange/binance, bybit, gate, htx, and okx
// each provide one.
type Dialect interface {
	// Name is the venue identifier used in market keys, e.g. "binance".
	Name() string

	// WSURL is the public-trade WebSocket endpoint.
	WSURL() string

	// DiscoverSymbols performs the one-shot HTTPS instrument lookup and
	// returns qualifying USDT-quoted symbols.
	DiscoverSymbols(ctx context.Context) ([]string, error)

	// SubscribeFrames builds the outbound frame(s) that subscribe to
	// public trades for the given symbols. Most venues return one
	// frame; htx returns one per symbol.
	SubscribeFrames(symbols []string) ([][]byte, error)

	// Binary reports whether inbound frames arrive as compressed
	// binary (htx) rather than plain text.
	Binary() bool

	// Decode parses one inbound frame. ok is false for frames that
	// carry no trades (acks, heartbeats, system messages); those are
	// logged by the runner and discarded.
	Decode(raw []byte) (batch trade.Batch, ok bool, err error)

	// Heartbeat inspects a frame for a venue-level ping and, if it is
	// one, returns the reply frame to send back. htx's
	// {"ping":n}/{"pong":n} exchange is the only venue that needs this.
	Heartbeat(raw []byte) (reply []byte, isPing bool)
}
