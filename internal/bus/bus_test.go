package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pricepulse/internal/trade"
)

func TestBus_PublishAndDrain(t *testing.T) {
	b := New(2)
	assert.Equal(t, 0, b.Depth())

	b.Publish(trade.Batch{Exchange: "binance", Data: []trade.Record{{Symbol: "BTCUSDT", Price: 100}}})
	b.Publish(trade.Batch{Exchange: "bybit", Data: []trade.Record{{Symbol: "ETHUSDT", Price: 200}}})
	assert.Equal(t, 2, b.Depth())

	// Bus is full: this publish must not block and must be dropped.
	done := make(chan struct{})
	go func() {
		b.Publish(trade.Batch{Exchange: "okx", Data: []trade.Record{{Symbol: "SOLUSDT", Price: 300}}})
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
	assert.Equal(t, 2, b.Depth())

	first := <-b.Messages()
	require.Equal(t, "binance", first.Exchange)
	second := <-b.Messages()
	require.Equal(t, "bybit", second.Exchange)
	assert.Equal(t, 0, b.Depth())
}

func TestBus_FIFOPerProducer(t *testing.T) {
	b := New(10)
	for i := 0; i < 5; i++ {
		b.Publish(trade.Batch{Exchange: "binance", Data: []trade.Record{{Symbol: "BTCUSDT", Price: float64(i)}}})
	}
	for i := 0; i < 5; i++ {
		got := <-b.Messages()
		assert.Equal(t, float64(i), got.Data[0].Price)
	}
}
