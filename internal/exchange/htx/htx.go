// Package htx implements the exchange.Dialect for HTX (Huobi) linear
// swap trade streams. Unlike the other venues, HTX frames arrive as
// gzip-compressed binary and carry their own ping/pong heartbeat.
package htx

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/pricepulse/internal/exchange"
	"github.com/sawpanic/pricepulse/internal/exchange/discovery"
	"github.com/sawpanic/pricepulse/internal/trade"
)

const (
	wsURL          = "wss://api.hbdm.com/linear-swap-ws"
	instrumentsURL = "https://api.hbdm.com/v2/linear-swap-ex/market/detail/batch_merged?business_type=swap"
)

// Dialect is the HTX exchange.Dialect implementation.
type Dialect struct {
	client *discovery.Client
}

// New constructs an HTX dialect.
func New() *Dialect {
	return &Dialect{client: discovery.New("htx")}
}

var _ exchange.Dialect = (*Dialect)(nil)

func (d *Dialect) Name() string { return "htx" }

func (d *Dialect) WSURL() string { return wsURL }

func (d *Dialect) Binary() bool { return true }

type instrumentsResponse struct {
	Ticks []struct {
		ContractCode string `json:"contract_code"`
	} `json:"ticks"`
}

func (d *Dialect) DiscoverSymbols(ctx context.Context) ([]string, error) {
	body, err := d.client.Get(ctx, instrumentsURL)
	if err != nil {
		return nil, err
	}
	var resp instrumentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	var symbols []string
	for _, t := range resp.Ticks {
		if strings.HasSuffix(t.ContractCode, "USDT") {
			symbols = append(symbols, t.ContractCode)
		}
	}
	return symbols, nil
}

// SubscribeFrames returns one frame per symbol, since HTX's sub
// message carries a single topic.
func (d *Dialect) SubscribeFrames(symbols []string) ([][]byte, error) {
	frames := make([][]byte, 0, len(symbols))
	for _, s := range symbols {
		msg := map[string]interface{}{
			"sub": fmt.Sprintf("market.%s.trade.detail", s),
			"id":  strconv.FormatInt(time.Now().Unix(), 10),
		}
		frame, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal subscribe frame for %s: %w", s, err)
		}
		frames = append(frames, gzipCompress(frame))
	}
	return frames, nil
}

// Heartbeat decompresses raw (every inbound HTX frame is gzip binary)
// and, if it carries a {"ping":n} challenge, returns the matching
// {"pong":n} reply.
func (d *Dialect) Heartbeat(raw []byte) ([]byte, bool) {
	plain, err := gzipDecompress(raw)
	if err != nil {
		return nil, false
	}
	var ping struct {
		Ping int64 `json:"ping"`
	}
	if err := json.Unmarshal(plain, &ping); err != nil || ping.Ping == 0 {
		return nil, false
	}
	reply, _ := json.Marshal(map[string]int64{"pong": ping.Ping})
	return reply, true
}

type tradeDetailFrame struct {
	Channel string `json:"ch"`
	Tick    struct {
		Data []struct {
			Price     json.Number `json:"price"`
			Timestamp int64       `json:"ts"`
		} `json:"data"`
	} `json:"tick"`
}

func (d *Dialect) Decode(raw []byte) (trade.Batch, bool, error) {
	plain, err := gzipDecompress(raw)
	if err != nil {
		return trade.Batch{}, false, fmt.Errorf("gunzip frame: %w", err)
	}

	var ping struct {
		Ping int64 `json:"ping"`
	}
	if err := json.Unmarshal(plain, &ping); err == nil && ping.Ping != 0 {
		return trade.Batch{}, false, nil
	}

	var frame tradeDetailFrame
	if err := json.Unmarshal(plain, &frame); err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode trade frame: %w", err)
	}
	if !strings.HasSuffix(frame.Channel, ".trade.detail") {
		return trade.Batch{}, false, nil
	}
	parts := strings.Split(frame.Channel, ".")
	if len(parts) < 2 {
		return trade.Batch{}, false, fmt.Errorf("malformed channel %q", frame.Channel)
	}
	symbol := parts[1]

	records := make([]trade.Record, 0, len(frame.Tick.Data))
	for _, t := range frame.Tick.Data {
		price, err := t.Price.Float64()
		if err != nil {
			continue
		}
		records = append(records, trade.Record{
			Symbol:      symbol,
			Price:       price,
			TimestampMS: t.Timestamp,
		})
	}
	if len(records) == 0 {
		return trade.Batch{}, false, nil
	}
	return trade.Batch{Exchange: d.Name(), Data: records}, true, nil
}

func gzipCompress(plain []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write(plain)
	_ = w.Close()
	return buf.Bytes()
}

func gzipDecompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
