package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/bus"
)

// reconnectDelay is the fixed wait between a torn-down connection and
// the next connect attempt. Retries are unbounded; there is no
// exponential backoff.
const reconnectDelay = 250 * time.Millisecond

// state names the adapter's position in the connection lifecycle.
type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateSubscribing
	stateStreaming
	stateClosing
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "CONNECTING"
	case stateSubscribing:
		return "OPEN(subscribing)"
	case stateStreaming:
		return "OPEN(streaming)"
	case stateClosing:
		return "CLOSING"
	default:
		return "DISCONNECTED"
	}
}

// Run drives one venue's WebSocket for the lifetime of ctx: connect,
// discover symbols, subscribe, stream trade frames onto b, and
// reconnect after any transport error. It returns only when ctx is
// cancelled.
func Run(ctx context.Context, d Dialect, b *bus.Bus) {
	logger := log.With().Str("venue", d.Name()).Logger()

	for {
		if ctx.Err() != nil {
			return
		}

		corrID := uuid.NewString()
		runLogger := logger.With().Str("correlation_id", corrID).Logger()

		if err := runOnce(ctx, d, b, runLogger); err != nil {
			runLogger.Warn().Err(err).Msg("adapter connection ended")
		}

		if ctx.Err() != nil {
			return
		}

		runLogger.Info().Dur("delay", reconnectDelay).Msg("reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func runOnce(ctx context.Context, d Dialect, b *bus.Bus, logger zerolog.Logger) error {
	logger.Info().Str("state", stateConnecting.String()).Msg("connecting")

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 15 * time.Second

	conn, _, err := dialer.DialContext(ctx, d.WSURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info().Str("state", stateSubscribing.String()).Msg("subscribing")

	symbols, err := d.DiscoverSymbols(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		logger.Warn().Msg("no qualifying symbols discovered")
	}

	frames, err := d.SubscribeFrames(symbols)
	if err != nil {
		return err
	}
	msgType := websocket.TextMessage
	if d.Binary() {
		msgType = websocket.BinaryMessage
	}
	for _, frame := range frames {
		if err := conn.WriteMessage(msgType, frame); err != nil {
			logger.Warn().Err(err).Msg("subscribe send failed")
		}
	}

	logger.Info().Str("state", stateStreaming.String()).Int("symbols", len(symbols)).Msg("streaming")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		close(done)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return nil
			default:
			}
			return err
		}

		if reply, isPing := d.Heartbeat(raw); isPing {
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				logger.Warn().Err(err).Msg("heartbeat reply failed")
			}
			continue
		}

		batch, ok, err := d.Decode(raw)
		if err != nil {
			logger.Debug().Err(err).Msg("malformed frame, skipping")
			continue
		}
		if !ok {
			logger.Debug().Msg("non-trade frame, discarding")
			continue
		}
		b.Publish(batch)
	}
}
