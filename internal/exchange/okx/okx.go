// Package okx implements the exchange.Dialect for OKX SWAP trade
// streams.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sawpanic/pricepulse/internal/exchange"
	"github.com/sawpanic/pricepulse/internal/exchange/discovery"
	"github.com/sawpanic/pricepulse/internal/trade"
)

const (
	wsURL          = "wss://ws.okx.com:8443/ws/v5/public"
	instrumentsURL = "https://www.okx.com/api/v5/public/instruments?instType=SWAP"
)

// Dialect is the OKX exchange.Dialect implementation.
type Dialect struct {
	client *discovery.Client
}

// New constructs an OKX dialect.
func New() *Dialect {
	return &Dialect{client: discovery.New("okx")}
}

var _ exchange.Dialect = (*Dialect)(nil)

func (d *Dialect) Name() string { return "okx" }

func (d *Dialect) WSURL() string { return wsURL }

func (d *Dialect) Binary() bool { return false }

type instrumentsResponse struct {
	Data []struct {
		InstID      string `json:"instId"`
		Underlying  string `json:"uly"`
	} `json:"data"`
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
	for _, s := range resp.Data {
		if strings.HasSuffix(s.Underlying, "USDT") {
			symbols = append(symbols, s.InstID)
		}
	}
	return symbols, nil
}

func (d *Dialect) SubscribeFrames(symbols []string) ([][]byte, error) {
	args := make([]map[string]string, len(symbols))
	for i, s := range symbols {
		args[i] = map[string]string{"channel": "trades", "instId": s}
	}
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal subscribe frame: %w", err)
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) Heartbeat(raw []byte) ([]byte, bool) { return nil, false }

type tradesFrame struct {
	Arg struct {
		Channel string `json:"channel"`
	} `json:"arg"`
	Event string `json:"event"`
	Data  []struct {
		InstID    string      `json:"instId"`
		Price     json.Number `json:"px"`
		Timestamp string      `json:"ts"`
	} `json:"data"`
}

func (d *Dialect) Decode(raw []byte) (trade.Batch, bool, error) {
	var frame tradesFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode trade frame: %w", err)
	}
	if frame.Event == "subscribe" || frame.Arg.Channel != "trades" || len(frame.Data) == 0 {
		return trade.Batch{}, false, nil
	}
	records := make([]trade.Record, 0, len(frame.Data))
	for _, t := range frame.Data {
		price, err := t.Price.Float64()
		if err != nil {
			continue
		}
		ts, err := parseMillis(t.Timestamp)
		if err != nil {
			continue
		}
		records = append(records, trade.Record{
			Symbol:      t.InstID,
			Price:       price,
			TimestampMS: ts,
		})
	}
	if len(records) == 0 {
		return trade.Batch{}, false, nil
	}
	return trade.Batch{Exchange: d.Name(), Data: records}, true, nil
}

func parseMillis(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
