package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TradesFrame(t *testing.T) {
	d := New()
	raw := []byte(`{"channel":"futures.trades","event":"update","result":[{"contract":"BTC_USDT","price":"65000.5","create_time_ms":1700000000000}]}`)

	batch, ok, err := d.Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, batch.Data, 1)
	assert.Equal(t, "gate", batch.Exchange)
	assert.Equal(t, "BTC_USDT", batch.Data[0].Symbol)
	assert.Equal(t, 65000.5, batch.Data[0].Price)
}

func TestDecode_SubscribeAckIgnored(t *testing.T) {
	d := New()
	raw := []byte(`{"channel":"futures.trades","event":"subscribe","time":1700000000}`)
	_, ok, err := d.Decode(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}
