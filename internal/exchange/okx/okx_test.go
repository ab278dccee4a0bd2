package okx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TradesFrame(t *testing.T) {
	d := New()
	raw := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","px":"65000.5","ts":"1700000000000"}]}`)

	batch, ok, err := d.Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, batch.Data, 1)
	assert.Equal(t, "okx", batch.Exchange)
	assert.Equal(t, "BTC-USDT-SWAP", batch.Data[0].Symbol)
	assert.Equal(t, 65000.5, batch.Data[0].Price)
	assert.Equal(t, int64(1700000000000), batch.Data[0].TimestampMS)
}

func TestDecode_SubscribeAckIgnored(t *testing.T) {
	d := New()
	raw := []byte(`{"event":"subscribe","arg":{"channel":"trades","instId":"BTC-USDT-SWAP"}}`)
	_, ok, err := d.Decode(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeFrames_BuildsChannelArgs(t *testing.T) {
	d := New()
	frames, err := d.SubscribeFrames([]string{"BTC-USDT-SWAP"})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), `"channel":"trades"`)
	assert.Contains(t, string(frames[0]), `"instId":"BTC-USDT-SWAP"`)
}
