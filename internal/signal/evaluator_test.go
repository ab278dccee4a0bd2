package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pricepulse/internal/store"
)

type stubNotifier struct {
	requests []AlertRequest
}

func (s *stubNotifier) Notify(ctx context.Context, req AlertRequest) error {
	s.requests = append(s.requests, req)
	return nil
}

type stubArchive struct {
	records []AlertRequest
}

func (s *stubArchive) Record(ctx context.Context, req AlertRequest) error {
	s.records = append(s.records, req)
	return nil
}

func newTestEvaluator(t *testing.T) (*Evaluator, *store.FakeStore, *stubNotifier, *stubArchive) {
	t.Helper()
	fake := store.NewFake()
	notifier := &stubNotifier{}
	archive := &stubArchive{}
	cfg := Config{
		Lookbacks:     []Lookback{{Period: 60 * time.Second, Threshold: 2.0}},
		PriceSubsets:  5,
		SignalTimeout: 120 * time.Second,
	}
	return New(fake, notifier, archive, cfg), fake, notifier, archive
}

func seedPrices(t *testing.T, fake *store.FakeStore, marketKey string, prices []float64, startMS, stepMS int64) {
	t.Helper()
	ctx := context.Background()
	for i, p := range prices {
		require.NoError(t, fake.Add(ctx, marketKey, startMS+int64(i)*stepMS, p, store.DuplicateLast))
	}
}

func TestEvaluate_NewUpAlert(t *testing.T) {
	e, fake, notifier, archive := newTestEvaluator(t)
	ctx := context.Background()

	prices := []float64{100, 100.2, 100.5, 100.7, 101.0, 101.5, 101.9, 102.2, 102.3, 102.5}
	seedPrices(t, fake, "bybit_BTCUSDT", prices, time.Now().Add(-9*time.Second).UnixMilli(), 1000)

	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))

	require.Len(t, notifier.requests, 1)
	req := notifier.requests[0]
	assert.False(t, req.Update)
	assert.True(t, req.IsUptrend)
	assert.Equal(t, 2.5, req.Percent)
	require.Len(t, archive.records, 1)

	latch, ok, err := fake.Get(ctx, "bybit_BTCUSDT_60_last_percent")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2.5", latch)

	signalPts, err := fake.Range(ctx, "bybit_BTCUSDT_signals", 0, time.Now().UnixMilli()+1000)
	require.NoError(t, err)
	assert.Len(t, signalPts, 1)
}

func TestEvaluate_UpdateAlert(t *testing.T) {
	e, fake, notifier, _ := newTestEvaluator(t)
	ctx := context.Background()

	base := time.Now().Add(-12 * time.Second).UnixMilli()
	prices := []float64{100, 100.2, 100.5, 100.7, 101.0, 101.5, 101.9, 102.2, 102.3, 102.5}
	seedPrices(t, fake, "bybit_BTCUSDT", prices, base, 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))
	require.Len(t, notifier.requests, 1)

	more := []float64{102.6, 103.0, 103.3}
	seedPrices(t, fake, "bybit_BTCUSDT", more, base+10000, 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))

	require.Len(t, notifier.requests, 2)
	update := notifier.requests[1]
	assert.True(t, update.Update)
	assert.Equal(t, 3.3, update.Percent)

	signalPts, err := fake.Range(ctx, "bybit_BTCUSDT_signals", 0, time.Now().UnixMilli()+1000)
	require.NoError(t, err)
	assert.Len(t, signalPts, 1, "update must not append to the signal series")
}

func TestEvaluate_SuppressesWhenPercentDoesNotImprove(t *testing.T) {
	e, fake, notifier, _ := newTestEvaluator(t)
	ctx := context.Background()

	base := time.Now().Add(-9 * time.Second).UnixMilli()
	prices := []float64{100, 100.2, 100.5, 100.7, 101.0, 101.5, 101.9, 102.2, 102.3, 102.5}
	seedPrices(t, fake, "bybit_BTCUSDT", prices, base, 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))
	require.Len(t, notifier.requests, 1)

	// Re-evaluate with no new prices: max/min unchanged, so pct does not grow.
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))
	assert.Len(t, notifier.requests, 1)
}

func TestEvaluate_SkipsWhenFewerThanPriceSubsetsSamples(t *testing.T) {
	e, fake, notifier, _ := newTestEvaluator(t)
	ctx := context.Background()

	// PriceSubsets is 5; seed only 4 points.
	seedPrices(t, fake, "bybit_BTCUSDT", []float64{100, 101, 102, 103}, time.Now().Add(-3*time.Second).UnixMilli(), 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))
	assert.Empty(t, notifier.requests)
}

func TestEvaluate_ExactThresholdDoesNotAlert(t *testing.T) {
	e, fake, notifier, _ := newTestEvaluator(t)
	ctx := context.Background()

	// min=100, max=102 -> pct exactly 2.0, equal to threshold.
	prices := []float64{100, 100.5, 101, 101.5, 102}
	seedPrices(t, fake, "bybit_BTCUSDT", prices, time.Now().Add(-4*time.Second).UnixMilli(), 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))
	assert.Empty(t, notifier.requests)
}

func TestEvaluate_ExpiredLatchTreatedAsArmed(t *testing.T) {
	e, fake, notifier, _ := newTestEvaluator(t)
	ctx := context.Background()

	require.NoError(t, fake.Set(ctx, "bybit_BTCUSDT_60_last_percent", "10.0", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	prices := []float64{100, 100.2, 100.5, 100.7, 101.0, 101.5, 101.9, 102.2, 102.3, 102.5}
	seedPrices(t, fake, "bybit_BTCUSDT", prices, time.Now().Add(-9*time.Second).UnixMilli(), 1000)
	require.NoError(t, e.Evaluate(ctx, "bybit_BTCUSDT"))

	require.Len(t, notifier.requests, 1)
	assert.False(t, notifier.requests[0].Update)
}

func TestIsUptrend_Deterministic(t *testing.T) {
	prices := []float64{100, 100.2, 100.5, 100.7, 101.0, 101.5, 101.9, 102.2, 102.3, 102.5}
	assert.True(t, isUptrend(prices, 5))

	descending := []float64{102.5, 102.3, 102.2, 101.9, 101.5, 101.0, 100.7, 100.5, 100.2, 100}
	assert.False(t, isUptrend(descending, 5))
}

func TestIsUptrend_TieGoesToFalse(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100, 100}
	assert.False(t, isUptrend(flat, 3))
}

func TestDefaultLatchTTL_SplitsAtFiveMinutes(t *testing.T) {
	assert.Equal(t, 60*time.Second, defaultLatchTTL(60*time.Second))
	assert.Equal(t, 5*time.Minute, defaultLatchTTL(10*time.Minute))
}
