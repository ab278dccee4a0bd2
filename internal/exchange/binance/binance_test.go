package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TradeFrame(t *testing.T) {
	d := New()
	raw := []byte(`{"e":"trade","s":"BTCUSDT","p":"65000.50","T":1700000000000}`)

	batch, ok, err := d.Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, batch.Data, 1)
	assert.Equal(t, "binance", batch.Exchange)
	assert.Equal(t, "BTCUSDT", batch.Data[0].Symbol)
	assert.Equal(t, 65000.50, batch.Data[0].Price)
	assert.Equal(t, int64(1700000000000), batch.Data[0].TimestampMS)
}

func TestDecode_NonTradeFrameIgnored(t *testing.T) {
	d := New()
	raw := []byte(`{"id":"subscribe_1700000000000","result":null}`)

	_, ok, err := d.Decode(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecode_MalformedFrame(t *testing.T) {
	d := New()
	_, ok, err := d.Decode([]byte(`not json`))
	require.Error(t, err)
	assert.False(t, ok)
}

func TestSubscribeFrames_LowercasesSymbolAndAppendsTradeSuffix(t *testing.T) {
	d := New()
	frames, err := d.SubscribeFrames([]string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), `"btcusdt@trade"`)
	assert.Contains(t, string(frames[0]), `"ethusdt@trade"`)
	assert.Contains(t, string(frames[0]), `"method":"SUBSCRIBE"`)
}

func TestHeartbeat_NeverPings(t *testing.T) {
	d := New()
	reply, isPing := d.Heartbeat([]byte(`{}`))
	assert.Nil(t, reply)
	assert.False(t, isPing)
}
