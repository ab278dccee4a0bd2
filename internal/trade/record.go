// Package trade defines the normalised trade schema shared by every
// exchange adapter and the ingestion engine.
package trade

import (
	"fmt"
	"strings"
)

// Record is a single normalised trade print.
type Record struct {
	Symbol      string  `json:"s"`
	Price       float64 `json:"p"`
	TimestampMS int64   `json:"T"`
}

// Batch groups trade prints from one venue so adapters can amortise
// per-frame overhead instead of publishing one record at a time.
type Batch struct {
	Exchange string   `json:"exchange"`
	Data     []Record `json:"data"`
}

// MarketKey builds the canonical "<exchange>_<symbol>" identity for a
// tradable instrument. Callers must pass a non-empty exchange and symbol.
func MarketKey(exchange, symbol string) string {
	return exchange + "_" + symbol
}

// SplitMarketKey reverses MarketKey, splitting at the first underscore
// only so symbols that themselves contain underscores (e.g. gate's
// "1000PEPE_USDT") are not corrupted.
func SplitMarketKey(marketKey string) (exchange, symbol string, err error) {
	parts := strings.SplitN(marketKey, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed market key: %q", marketKey)
	}
	return parts[0], parts[1], nil
}
