// Package gate implements the exchange.Dialect for Gate.io USDT
// perpetual futures trade streams.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/pricepulse/internal/exchange"
	"github.com/sawpanic/pricepulse/internal/exchange/discovery"
	"github.com/sawpanic/pricepulse/internal/trade"
)

const (
	wsURL          = "wss://fx-ws.gateio.ws/v4/ws/usdt"
	instrumentsURL = "https://api.gateio.ws/api/v4/futures/usdt/contracts"
)

// Dialect is the Gate.io exchange.Dialect implementation.
type Dialect struct {
	client *discovery.Client
}

// New constructs a Gate.io dialect.
func New() *Dialect {
	return &Dialect{client: discovery.New("gate")}
}

var _ exchange.Dialect = (*Dialect)(nil)

func (d *Dialect) Name() string { return "gate" }

func (d *Dialect) WSURL() string { return wsURL }

func (d *Dialect) Binary() bool { return false }

type contract struct {
	Name        string `json:"name"`
	InDelisting bool   `json:"in_delisting"`
}

func (d *Dialect) DiscoverSymbols(ctx context.Context) ([]string, error) {
	body, err := d.client.Get(ctx, instrumentsURL)
	if err != nil {
		return nil, err
	}
	var contracts []contract
	if err := json.Unmarshal(body, &contracts); err != nil {
		return nil, fmt.Errorf("decode contracts: %w", err)
	}
	var symbols []string
	for _, c := range contracts {
		if !c.InDelisting && strings.HasSuffix(c.Name, "USDT") {
			symbols = append(symbols, c.Name)
		}
	}
	return symbols, nil
}

func (d *Dialect) SubscribeFrames(symbols []string) ([][]byte, error) {
	msg := map[string]interface{}{
		"time":    time.Now().Unix(),
		"channel": "futures.trades",
		"event":   "subscribe",
		"payload": symbols,
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal subscribe frame: %w", err)
	}
	return [][]byte{frame}, nil
}

func (d *Dialect) Heartbeat(raw []byte) ([]byte, bool) { return nil, false }

type tradesFrame struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Result  []struct {
		Contract     string      `json:"contract"`
		Price        json.Number `json:"price"`
		CreateTimeMS int64       `json:"create_time_ms"`
	} `json:"result"`
}

func (d *Dialect) Decode(raw []byte) (trade.Batch, bool, error) {
	var frame tradesFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return trade.Batch{}, false, fmt.Errorf("decode trade frame: %w", err)
	}
	if frame.Channel != "futures.trades" || frame.Event == "subscribe" || len(frame.Result) == 0 {
		return trade.Batch{}, false, nil
	}
	records := make([]trade.Record, 0, len(frame.Result))
	for _, r := range frame.Result {
		price, err := r.Price.Float64()
		if err != nil {
			continue
		}
		records = append(records, trade.Record{
			Symbol:      r.Contract,
			Price:       price,
			TimestampMS: r.CreateTimeMS,
		})
	}
	if len(records) == 0 {
		return trade.Batch{}, false, nil
	}
	return trade.Batch{Exchange: d.Name(), Data: records}, true, nil
}
