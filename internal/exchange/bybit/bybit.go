// Package bybit implements the exchange.Dialect for Bybit linear
// perpetual trade streams.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/pricepulse/internal/exchange"
	"github.com/sawpanic/pricepulse/internal/exchange/discovery"
	"github.com/sawpanic/pricepulse/internal/trade"
)

const (
	wsURL          = "wss://stream.bybit.com/v5/public/linear"
	instrumentsURL = "https://api.bybit.com/v2/public/symbols"
)

// Dialect is the Bybit exchange.Dialect implementation.
type Dialect struct {
	client *discovery.Client
}

// New constructs a Bybit dialect.
func New() *Dialect {
	return &Dialect{client: discovery.New("bybit")}
}

var _ exchange.Dialect = (*Dialect)(nil)

func (d *Dialect) Name() string { return "bybit" }

func (d *Dialect) WSURL() string { return wsURL }

func (d *Dialect) Binary() bool { return false }

type symbolsResponse struct {
	Result []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"result"`
}

func (d *Dialect) DiscoverSymbols(ctx context.Context) ([]string, error) {
	body, err := d.client.Get(ctx, instrumentsURL)
	if err != nil {
		return nil, err
	}
	var resp symbolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	var symbols []string
	for _, s := range resp.Result {
		if s.Status == "Trading" && strings.HasSuffix(s.Name, "USDT") {
			symbols = append(symbols, s.Name)
		}
	}
	return symbols, nil
}

func (d *Dialect) SubscribeFrames(symbols []string) ([][]byte, error) {
	args := make([]string, len(symbols))
	for i, s := range symbols {
		args[i] = "publicTrade." + s
	}
	msg := map[string]interface{}{
		"op":     "subscribe",
		"req_id": "subscribe_" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		"args":   args,
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal subscribe frame: %w", err)
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) Heartbeat(raw []byte) ([]byte, bool) { return nil, false }

type publicTradeFrame struct {
	Topic string `json:"topic"`
	Data  []struct {
		Symbol string      `json:"s"`
		Price  json.Number `json:"p"`
		TimeMS int64       `json:"T"`
	} `json:"data"`
}

func (d *Dialect) Decode(raw []byte) (trade.Batch, bool, error) {
	var frame publicTradeFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode trade frame: %w", err)
	}
	if !strings.HasPrefix(frame.Topic, "publicTrade.") || len(frame.Data) == 0 {
		return trade.Batch{}, false, nil
	}
	records := make([]trade.Record, 0, len(frame.Data))
	for _, t := range frame.Data {
		price, err := t.Price.Float64()
		if err != nil {
			continue
		}
		records = append(records, trade.Record{
			Symbol:      t.Symbol,
			Price:       price,
			TimestampMS: t.TimeMS,
		})
	}
	if len(records) == 0 {
		return trade.Batch{}, false, nil
	}
	return trade.Batch{Exchange: d.Name(), Data: records}, true, nil
}
