package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/pricepulse/internal/signal"
)

func TestFormatMessage_Uptrend(t *testing.T) {
	req := signal.AlertRequest{
		Exchange:   "bybit",
		Symbol:     "BTCUSDT",
		Period:     60 * time.Second,
		Percent:    2.5,
		IsUptrend:  true,
		MinPrice:   100,
		MaxPrice:   102.5,
		Signals24h: 3,
	}
	msg := formatMessage(req)

	assert.Contains(t, msg, "bybit − 1м − [BTCUSDT](https://www.coinglass.com/tv/Bybit_BTCUSDT)")
	assert.Contains(t, msg, "▲ Pump: +2.5% (100.0 - 102.5)")
	assert.Contains(t, msg, "Signals 24h: 3")
}

func TestFormatMessage_Downtrend(t *testing.T) {
	req := signal.AlertRequest{
		Exchange:   "okx",
		Symbol:     "ETHUSDT",
		Period:     5 * time.Minute,
		Percent:    -3.25,
		IsUptrend:  false,
		MinPrice:   1900,
		MaxPrice:   1965,
		Signals24h: 0,
	}
	msg := formatMessage(req)

	assert.Contains(t, msg, "okx − 5м − [ETHUSDT](https://www.coinglass.com/tv/Okx_ETHUSDT)")
	assert.Contains(t, msg, "▼ Dump: -3.25% (1965.0 - 1900.0)")
}

func TestFormatMessage_WholeNumberPercentKeepsOneDecimal(t *testing.T) {
	req := signal.AlertRequest{
		Exchange:   "binance",
		Symbol:     "SOLUSDT",
		Period:     time.Minute,
		Percent:    2.0,
		IsUptrend:  true,
		MinPrice:   100,
		MaxPrice:   102,
		Signals24h: 1,
	}
	msg := formatMessage(req)

	assert.Contains(t, msg, "▲ Pump: +2.0% (100.0 - 102.0)")
}

func TestFormatPercentMagnitude_RendersWholeNumbersWithOneDecimal(t *testing.T) {
	assert.Equal(t, "2.0", formatPercentMagnitude(2.0))
	assert.Equal(t, "5.0", formatPercentMagnitude(-5.0))
	assert.Equal(t, "3.25", formatPercentMagnitude(-3.25))
}

func TestFormatPrice_StripsTrailingZerosAndRepads(t *testing.T) {
	assert.Equal(t, "100.0", formatPrice(100))
	assert.Equal(t, "100.25", formatPrice(100.25))
	assert.Equal(t, "0.000000001", formatPrice(0.000000001))
}

func TestLatchTTL_SplitsAtFiveMinutes(t *testing.T) {
	assert.Equal(t, 60*time.Second, latchTTL(60*time.Second))
	assert.Equal(t, 5*time.Minute, latchTTL(10*time.Minute))
}
