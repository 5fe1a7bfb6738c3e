package trader

import (
	"testing"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTrading() *config.Trading {
	return &config.Trading{
		InitialCapital:       100000,
		MaxPositionNotional:  10000,
		MaxPortfolioExposure: 0.80,
		MaxPositions:         10,
		DefaultStopLoss:      0.02,
		DefaultTakeProfit:    0.05,
		MaxHoldHours:         24,
		PerTradeCapFraction:  0.10,
	}
}

func newTestLedger() *Ledger {
	return NewLedger(testTrading(), zap.NewNop())
}

func noPrices(string) (float64, bool) { return 0, false }

func TestLedgerOpenDebitsCapital(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	trade, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)

	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, trade.Status)
	assert.Equal(t, 95000.0, l.AvailableCapital())
	assert.Equal(t, 0.1, l.Position("BTC/USD"))
	assert.Equal(t, 1, l.OpenCount())

	// Equity marked at the entry price reflects the debit; the open
	// position carries no unrealized gain yet.
	assert.InDelta(t, 95000.0, l.TotalEquity(func(string) (float64, bool) { return 50000, true }), 1e-9)
}

func TestLedgerCloseCreditsExitNotional(t *testing.T) {
	l := newTestLedger()
	now := time.Now()
	trade, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)

	closed, err := l.Close(trade.ID, 51000, models.ReasonTakeProfit, now.Add(time.Hour))

	require.NoError(t, err)
	assert.InDelta(t, 100.0, closed.RealizedPnL, 1e-9)
	assert.InDelta(t, 100100.0, l.AvailableCapital(), 1e-9)
	assert.Zero(t, l.Position("BTC/USD"))
	assert.Zero(t, l.OpenCount())

	wins, losses, pnl := l.Results()
	assert.Equal(t, 1, wins)
	assert.Zero(t, losses)
	assert.InDelta(t, 100.0, pnl, 1e-9)
}

func TestLedgerInsufficientCapital(t *testing.T) {
	l := newTestLedger()

	_, err := l.Open("BTC/USD", models.SideBuy, 3, 50000, "momentum", nil, nil, time.Now())

	assert.ErrorIs(t, err, ErrInsufficientCapital)
	assert.Equal(t, 100000.0, l.AvailableCapital())
	assert.Zero(t, l.OpenCount())
}

func TestLedgerDefaultLevels(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	long, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)
	assert.InDelta(t, 49000.0, *long.StopLoss, 1e-9)
	assert.InDelta(t, 52500.0, *long.TakeProfit, 1e-9)

	short, err := l.Open("ETH/USD", models.SideSell, 1, 3000, "mean_reversion", nil, nil, now)
	require.NoError(t, err)
	assert.InDelta(t, 3060.0, *short.StopLoss, 1e-9)
	assert.InDelta(t, 2850.0, *short.TakeProfit, 1e-9)
}

func TestLedgerRejectsInconsistentLevels(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	// A buy target below entry would trigger take-profit immediately.
	badTarget := 48000.0
	_, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, &badTarget, now)
	assert.ErrorIs(t, err, ErrInvalidLevels)

	// A sell stop below entry is on the profitable side.
	badStop := 2900.0
	_, err = l.Open("ETH/USD", models.SideSell, 1, 3000, "mean_reversion", &badStop, nil, now)
	assert.ErrorIs(t, err, ErrInvalidLevels)

	assert.Equal(t, 100000.0, l.AvailableCapital())
}

func TestLedgerRejectsNonPositiveSizeAndPrice(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	_, err := l.Open("BTC/USD", models.SideBuy, 0, 50000, "momentum", nil, nil, now)
	assert.Error(t, err)

	_, err = l.Open("BTC/USD", models.SideBuy, 0.1, 0, "momentum", nil, nil, now)
	assert.Error(t, err)
}

func TestLedgerCloseUnknownTrade(t *testing.T) {
	l := newTestLedger()

	_, err := l.Close("no-such-id", 50000, models.ReasonManual, time.Now())

	assert.ErrorIs(t, err, ErrTradeNotOpen)
}

func TestLedgerCloseIsTerminal(t *testing.T) {
	l := newTestLedger()
	now := time.Now()
	trade, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)

	_, err = l.Close(trade.ID, 51000, models.ReasonTakeProfit, now)
	require.NoError(t, err)

	_, err = l.Close(trade.ID, 52000, models.ReasonManual, now)
	assert.ErrorIs(t, err, ErrTradeNotOpen)
}

func TestLedgerNetsOpposingTrades(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	_, err := l.Open("BTC/USD", models.SideBuy, 0.3, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)
	_, err = l.Open("BTC/USD", models.SideSell, 0.1, 50000, "mean_reversion", nil, nil, now)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, l.Position("BTC/USD"), 1e-9)
	assert.Equal(t, 2, l.OpenCount())
	assert.InDelta(t, 20000.0, l.CommittedNotional(), 1e-9)
}

func TestLedgerEquityFallsBackToEntryPrice(t *testing.T) {
	l := newTestLedger()
	now := time.Now()
	_, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)

	// Without a price the open trade contributes zero unrealized P&L.
	assert.InDelta(t, 95000.0, l.TotalEquity(noPrices), 1e-9)

	up := func(string) (float64, bool) { return 52000, true }
	assert.InDelta(t, 95200.0, l.TotalEquity(up), 1e-9)
}

func TestLedgerCapitalConservation(t *testing.T) {
	l := newTestLedger()
	now := time.Now()

	// Many rounds of opening and closing flat at the entry price must
	// return available capital to its starting point exactly.
	for i := 0; i < 50; i++ {
		side := models.SideBuy
		if i%2 == 1 {
			side = models.SideSell
		}
		price := 40000.0 + float64(i)*100
		trade, err := l.Open("BTC/USD", side, 0.05, price, "momentum", nil, nil, now)
		require.NoError(t, err)
		_, err = l.Close(trade.ID, price, models.ReasonManual, now)
		require.NoError(t, err)
	}

	assert.InDelta(t, 100000.0, l.AvailableCapital(), 1e-6)
	assert.InDelta(t, 0.0, l.Position("BTC/USD"), 1e-9)
	_, _, pnl := l.Results()
	assert.InDelta(t, 0.0, pnl, 1e-6)
	assert.Len(t, l.ClosedTrades(), 50)
}

func TestLedgerPortfolioIsACopy(t *testing.T) {
	l := newTestLedger()
	now := time.Now()
	_, err := l.Open("BTC/USD", models.SideBuy, 0.1, 50000, "momentum", nil, nil, now)
	require.NoError(t, err)

	p := l.Portfolio()
	p["BTC/USD"] = 999

	assert.Equal(t, 0.1, l.Position("BTC/USD"))
}
