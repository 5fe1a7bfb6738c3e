package feed

import (
	"testing"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFeedConfig() *config.Feed {
	return &config.Feed{
		HistorySize:      5,
		MomentumWindow:   3,
		PriceSpikeAlert:  0.05,
		VolumeSpikeAlert: 3.0,
	}
}

func newTestMonitor() *Monitor {
	return NewMonitor(testFeedConfig(), nil, zap.NewNop())
}

func TestMonitorRecordTrade(t *testing.T) {
	m := newTestMonitor()

	m.RecordTrade("BTC/USD", 50000, 0.5)

	price, ok := m.LatestPrice("BTC/USD")
	require.True(t, ok)
	assert.Equal(t, 50000.0, price)

	snap, ok := m.Snapshot("BTC/USD")
	require.True(t, ok)
	assert.Equal(t, "BTC/USD", snap.Symbol)
	assert.Equal(t, int64(1), snap.TradeCount)
	assert.Equal(t, []float64{50000}, snap.History)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestMonitorIgnoresInvalidTrades(t *testing.T) {
	m := newTestMonitor()

	m.RecordTrade("", 50000, 1)
	m.RecordTrade("BTC/USD", 0, 1)
	m.RecordTrade("BTC/USD", -1, 1)

	_, ok := m.LatestPrice("BTC/USD")
	assert.False(t, ok)
}

func TestMonitorUnknownSymbol(t *testing.T) {
	m := newTestMonitor()

	_, ok := m.LatestPrice("DOGE/USD")
	assert.False(t, ok)
	_, ok = m.Snapshot("DOGE/USD")
	assert.False(t, ok)
}

func TestMonitorPriceChange(t *testing.T) {
	m := newTestMonitor()

	m.RecordTrade("BTC/USD", 50000, 1)
	snap, _ := m.Snapshot("BTC/USD")
	assert.Zero(t, snap.PriceChange)

	m.RecordTrade("BTC/USD", 51000, 1)
	snap, _ = m.Snapshot("BTC/USD")
	assert.InDelta(t, 0.02, snap.PriceChange, 1e-9)
}

func TestMonitorHistoryCapped(t *testing.T) {
	m := newTestMonitor()

	for i := 0; i < 10; i++ {
		m.RecordTrade("BTC/USD", 100+float64(i), 1)
	}

	snap, _ := m.Snapshot("BTC/USD")
	assert.Equal(t, []float64{105, 106, 107, 108, 109}, snap.History)
	assert.Equal(t, int64(10), snap.TradeCount)
}

func TestMonitorMomentum(t *testing.T) {
	m := newTestMonitor()

	// Momentum needs more prints than the window before it is computed.
	for _, p := range []float64{100, 100, 100} {
		m.RecordTrade("BTC/USD", p, 1)
	}
	snap, _ := m.Snapshot("BTC/USD")
	assert.Zero(t, snap.Momentum)

	m.RecordTrade("BTC/USD", 102, 1)
	snap, _ = m.Snapshot("BTC/USD")
	// Base is the oldest price in the trailing window of 3.
	assert.InDelta(t, 0.02, snap.Momentum, 1e-9)
}

func TestMonitorRecordBarVolatility(t *testing.T) {
	m := newTestMonitor()
	m.RecordTrade("BTC/USD", 50000, 1)

	m.RecordBar("BTC/USD", 50000, 51000, 50000, 50500, 12)

	snap, _ := m.Snapshot("BTC/USD")
	assert.InDelta(t, 0.02, snap.Volatility, 1e-9)
}

func TestMonitorPriceSpikeAlert(t *testing.T) {
	m := newTestMonitor()
	var alerts []models.Alert
	m.SubscribeAlerts(func(a models.Alert) { alerts = append(alerts, a) })

	m.RecordTrade("BTC/USD", 50000, 1)
	m.RecordTrade("BTC/USD", 51000, 1) // +2%, below threshold
	assert.Empty(t, alerts)

	m.RecordTrade("BTC/USD", 54500, 1) // +6.9%
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertPriceSpike, alerts[0].Type)
	assert.Equal(t, "BTC/USD", alerts[0].Symbol)
	assert.Greater(t, alerts[0].Change, 0.05)

	m.RecordTrade("BTC/USD", 51000, 1) // -6.4%
	require.Len(t, alerts, 2)
	assert.Less(t, alerts[1].Change, -0.05)
}

func TestMonitorVolumeSpikeAlert(t *testing.T) {
	m := newTestMonitor()
	var alerts []models.Alert
	m.SubscribeAlerts(func(a models.Alert) { alerts = append(alerts, a) })

	// Build up volume history past the minimum sample count.
	for i := 0; i < 11; i++ {
		m.RecordTrade("BTC/USD", 50000, 1)
	}
	assert.Empty(t, alerts)

	m.RecordTrade("BTC/USD", 50000, 10)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertVolumeSpike, alerts[0].Type)
	assert.Equal(t, 10.0, alerts[0].Volume)
	assert.InDelta(t, 1.75, alerts[0].AvgVolume, 1e-9)
}

func TestMonitorSnapshotHistoryIsolated(t *testing.T) {
	m := newTestMonitor()
	m.RecordTrade("BTC/USD", 50000, 1)

	snap, _ := m.Snapshot("BTC/USD")
	snap.History[0] = 0

	again, _ := m.Snapshot("BTC/USD")
	assert.Equal(t, []float64{50000}, again.History)
}
