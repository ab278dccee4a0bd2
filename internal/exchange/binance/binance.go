// Package binance implements the exchange.Dialect for Binance spot
// trade streams.
package binance

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
	wsURL          = "wss://stream.binance.com:9443/ws"
	instrumentsURL = "https://api.binance.com/api/v3/exchangeInfo"
)

// Dialect is the Binance exchange.Dialect implementation.
type Dialect struct {
	client *discovery.Client
}

// New constructs a Binance dialect.
func New() *Dialect {
	return &Dialect{client: discovery.New("binance")}
}

var _ exchange.Dialect = (*Dialect)(nil)

func (d *Dialect) Name() string { return "binance" }

func (d *Dialect) WSURL() string { return wsURL }

func (d *Dialect) Binary() bool { return false }

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"symbols"`
}

func (d *Dialect) DiscoverSymbols(ctx context.Context) ([]string, error) {
	body, err := d.client.Get(ctx, instrumentsURL)
	if err != nil {
		return nil, err
	}
	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	var symbols []string
	for _, s := range resp.Symbols {
		if s.Status == "TRADING" && strings.HasSuffix(s.Symbol, "USDT") {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

func (d *Dialect) SubscribeFrames(symbols []string) ([][]byte, error) {
	args := make([]string, len(symbols))
	for i, s := range symbols {
		args[i] = strings.ToLower(s) + "@trade"
	}
	msg := map[string]interface{}{
		"id":     "subscribe_" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		"method": "SUBSCRIBE",
		"params": args,
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal subscribe frame: %w", err)
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) Heartbeat(raw []byte) ([]byte, bool) { return nil, false }

type tradeFrame struct {
	EventType string      `json:"e"`
	Symbol    string      `json:"s"`
	Price     json.Number `json:"p"`
	EventTime int64       `json:"T"`
}

func (d *Dialect) Decode(raw []byte) (trade.Batch, bool, error) {
	var frame tradeFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode trade frame: %w", err)
	}
	if frame.EventType != "trade" {
		return trade.Batch{}, false, nil
	}
	price, err := frame.Price.Float64()
	if err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode price: %w", err)
	}
	return trade.Batch{
		Exchange: d.Name(),
		Data: []trade.Record{{
			Symbol:      frame.Symbol,
			Price:       price,
			TimestampMS: frame.EventTime,
		}},
	}, true, nil
}
