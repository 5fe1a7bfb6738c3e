package trader

import (
	"testing"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func momentumConfig() *config.Momentum {
	return &config.Momentum{
		Enabled:         true,
		LookbackPeriods: 20,
		EntryThreshold:  0.02,
		MaxVolatility:   0.05,
	}
}

func meanReversionConfig() *config.MeanReversion {
	return &config.MeanReversion{
		Enabled:          true,
		BollingerPeriods: 20,
		BollingerStd:     2.0,
		ReversionTarget:  0.95,
	}
}

func historyOf(n int, price float64) []float64 {
	h := make([]float64, n)
	for i := range h {
		h[i] = price
	}
	return h
}

func flatState() PortfolioState {
	return PortfolioState{
		AvailableCapital: 100000,
		Positions:        map[string]float64{},
	}
}

func TestPositionSizeVolatilityAdjustment(t *testing.T) {
	trading := testTrading()

	// Calm market: full notional cap, but still below the per-trade
	// capital fraction cap of 0.2 BTC.
	assert.InDelta(t, 0.2, positionSize(50000, 0, 100000, trading), 1e-9)

	// 1% volatility shrinks the size by 10%.
	assert.InDelta(t, 0.18, positionSize(50000, 0.01, 100000, trading), 1e-9)

	// Extreme volatility floors the adjustment at 10%.
	assert.InDelta(t, 0.02, positionSize(50000, 0.50, 100000, trading), 1e-9)

	// Low available capital binds before the notional cap.
	assert.InDelta(t, 0.01, positionSize(50000, 0, 5000, trading), 1e-9)

	assert.Zero(t, positionSize(0, 0, 100000, trading))
}

func TestMomentumBuySignal(t *testing.T) {
	s := NewMomentumStrategy(momentumConfig(), testTrading())
	snap := models.Snapshot{
		Symbol:     "BTC/USD",
		Price:      50000,
		Momentum:   0.03,
		Volatility: 0.01,
		History:    historyOf(21, 50000),
	}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, models.SideBuy, intents[0].Side)
	assert.Equal(t, "momentum", intents[0].Strategy)
	assert.InDelta(t, 0.18, intents[0].Size, 1e-9)
	assert.Nil(t, intents[0].StopLoss)
	assert.Nil(t, intents[0].TakeProfit)
}

func TestMomentumNoSignal(t *testing.T) {
	s := NewMomentumStrategy(momentumConfig(), testTrading())

	testCases := []struct {
		name string
		snap models.Snapshot
	}{
		{
			name: "momentum below threshold",
			snap: models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: 0.01, Volatility: 0.01, History: historyOf(21, 50000)},
		},
		{
			name: "volatility too high",
			snap: models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: 0.03, Volatility: 0.06, History: historyOf(21, 50000)},
		},
		{
			name: "not enough history",
			snap: models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: 0.03, Volatility: 0.01, History: historyOf(10, 50000)},
		},
		{
			name: "no price",
			snap: models.Snapshot{Symbol: "BTC/USD"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intents, err := s.Evaluate(tc.snap, flatState())
			require.NoError(t, err)
			assert.Empty(t, intents)
		})
	}
}

func TestMomentumSellUnwindsNetLong(t *testing.T) {
	s := NewMomentumStrategy(momentumConfig(), testTrading())
	snap := models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: -0.03}
	state := PortfolioState{
		AvailableCapital: 95000,
		Positions:        map[string]float64{"BTC/USD": 0.5},
	}

	intents, err := s.Evaluate(snap, state)

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, models.SideSell, intents[0].Side)
	assert.Equal(t, 0.5, intents[0].Size)
}

func TestMomentumNegativeWithoutPosition(t *testing.T) {
	s := NewMomentumStrategy(momentumConfig(), testTrading())
	snap := models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: -0.03}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	assert.Empty(t, intents)
}

// bollingerWindow returns 20 prices with mean 100 and a sample standard
// deviation near 5.13, so the 2-sigma bands sit near 89.7 and 110.3.
func bollingerWindow() []float64 {
	h := make([]float64, 0, 20)
	for i := 0; i < 10; i++ {
		h = append(h, 95, 105)
	}
	return h
}

func TestMeanReversionBuyBelowLowerBand(t *testing.T) {
	s := NewMeanReversionStrategy(meanReversionConfig(), testTrading())
	snap := models.Snapshot{Symbol: "SOL/USD", Price: 88, History: bollingerWindow()}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, models.SideBuy, intents[0].Side)
	assert.Equal(t, "mean_reversion", intents[0].Strategy)
	require.NotNil(t, intents[0].TakeProfit)
	assert.InDelta(t, 95.0, *intents[0].TakeProfit, 1e-9)
	assert.Greater(t, intents[0].Size, 0.0)
}

func TestMeanReversionSellAboveUpperBand(t *testing.T) {
	s := NewMeanReversionStrategy(meanReversionConfig(), testTrading())
	snap := models.Snapshot{Symbol: "SOL/USD", Price: 112, History: bollingerWindow()}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, models.SideSell, intents[0].Side)
}

func TestMeanReversionInsideBands(t *testing.T) {
	s := NewMeanReversionStrategy(meanReversionConfig(), testTrading())
	snap := models.Snapshot{Symbol: "SOL/USD", Price: 100, History: bollingerWindow()}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestMeanReversionSkipsShortHistory(t *testing.T) {
	s := NewMeanReversionStrategy(meanReversionConfig(), testTrading())
	snap := models.Snapshot{Symbol: "SOL/USD", Price: 88, History: historyOf(10, 100)}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestMeanReversionUsesTrailingWindow(t *testing.T) {
	s := NewMeanReversionStrategy(meanReversionConfig(), testTrading())

	// Old extreme prices outside the window must not widen the bands.
	history := append(historyOf(50, 500), bollingerWindow()...)
	snap := models.Snapshot{Symbol: "SOL/USD", Price: 88, History: history}

	intents, err := s.Evaluate(snap, flatState())

	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, models.SideBuy, intents[0].Side)
}

func TestSampleStdDev(t *testing.T) {
	window := bollingerWindow()
	m := meanOf(window)

	assert.InDelta(t, 100.0, m, 1e-9)
	assert.InDelta(t, 5.1299, sampleStdDev(window, m), 1e-3)
}

func TestPlaceholderStrategiesAreSilent(t *testing.T) {
	snap := models.Snapshot{Symbol: "BTC/USD", Price: 50000, Momentum: 0.5, History: historyOf(100, 50000)}

	for _, s := range []Strategy{ArbitrageStrategy{}, MLPredictorStrategy{}} {
		intents, err := s.Evaluate(snap, flatState())
		assert.NoError(t, err)
		assert.Empty(t, intents)
	}
}

func TestEnabledStrategies(t *testing.T) {
	cfg := &config.Config{
		Trading: *testTrading(),
		Strategies: config.Strategies{
			Momentum:      *momentumConfig(),
			MeanReversion: *meanReversionConfig(),
		},
	}

	names := []string{}
	for _, s := range EnabledStrategies(cfg) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"momentum", "mean_reversion"}, names)

	cfg.Strategies.Momentum.Enabled = false
	cfg.Strategies.Arbitrage.Enabled = true
	names = names[:0]
	for _, s := range EnabledStrategies(cfg) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"mean_reversion", "arbitrage"}, names)
}
