package trader

import (
	"errors"
	"fmt"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrInsufficientCapital is returned when a trade's notional exceeds
	// available capital. Expected and recoverable.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrInvalidLevels is returned when protective levels are on the wrong
	// side of the entry price. Expected and recoverable; see the
	// mean-reversion target note in DESIGN.md.
	ErrInvalidLevels = errors.New("protective levels inconsistent with side")

	// ErrTradeNotOpen is returned when closing an unknown or already
	// closed trade id. This is a programming-contract violation.
	ErrTradeNotOpen = errors.New("trade is not open")
)

// Ledger aggregates open and closed trades into net portfolio exposure and
// available capital. It is not internally locked: the engine serializes all
// access through its own mutex (single-writer discipline).
type Ledger struct {
	logger *zap.Logger

	totalCapital     float64
	availableCapital float64
	defaultStopLoss  float64
	defaultTakeProfit float64

	portfolio map[string]float64      // symbol -> signed net size
	open      map[string]*models.Trade // trade id -> open trade
	closed    []*models.Trade          // append-only, close order

	wins     int
	losses   int
	totalPnL float64
}

// NewLedger creates an empty ledger funded with the configured capital.
func NewLedger(cfg *config.Trading, logger *zap.Logger) *Ledger {
	return &Ledger{
		logger:            logger.Named("ledger"),
		totalCapital:      cfg.InitialCapital,
		availableCapital:  cfg.InitialCapital,
		defaultStopLoss:   cfg.DefaultStopLoss,
		defaultTakeProfit: cfg.DefaultTakeProfit,
		portfolio:         make(map[string]float64),
		open:              make(map[string]*models.Trade),
	}
}

// Open registers a new trade with a simulated fill at the given price.
// Missing protective levels are derived from the configured default
// fractions. Capital is debited by the entry notional.
func (l *Ledger) Open(symbol string, side models.Side, size, price float64, strategy string,
	stopLoss, takeProfit *float64, now time.Time) (*models.Trade, error) {

	if size <= 0 {
		return nil, fmt.Errorf("trade size must be positive, got %.8f", size)
	}
	if price <= 0 {
		return nil, fmt.Errorf("entry price must be positive, got %.8f", price)
	}

	if stopLoss == nil {
		stopLoss = ptr(defaultLevel(side, price, l.defaultStopLoss, false))
	}
	if takeProfit == nil {
		takeProfit = ptr(defaultLevel(side, price, l.defaultTakeProfit, true))
	}
	if err := validateLevels(side, price, *stopLoss, *takeProfit); err != nil {
		return nil, err
	}

	notional := size * price
	if notional > l.availableCapital {
		return nil, fmt.Errorf("%w: notional %.2f exceeds available %.2f",
			ErrInsufficientCapital, notional, l.availableCapital)
	}

	trade := models.NewTrade(symbol, side, size, price, strategy, stopLoss, takeProfit, now)
	trade.Status = models.StatusExecuted // simulated fill is immediate

	l.open[trade.ID] = trade
	l.availableCapital -= notional
	l.portfolio[symbol] += trade.SignedSize()

	l.logger.Info("Trade executed",
		zap.String("id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("price", price),
		zap.String("strategy", strategy),
		zap.Float64("stop_loss", *stopLoss),
		zap.Float64("take_profit", *takeProfit),
		zap.Float64("available_capital", l.availableCapital))

	return trade, nil
}

// Close exits an open trade at the given price, credits the exit notional
// back to available capital, and moves the trade to the closed history.
func (l *Ledger) Close(id string, exitPrice float64, reason models.CloseReason, now time.Time) (*models.Trade, error) {
	trade, ok := l.open[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotOpen, id)
	}

	trade.Close(exitPrice, reason, now)

	l.availableCapital += trade.Size * exitPrice
	l.portfolio[trade.Symbol] -= trade.SignedSize()
	delete(l.open, id)
	l.closed = append(l.closed, trade)

	if trade.RealizedPnL > 0 {
		l.wins++
	} else {
		l.losses++
	}
	l.totalPnL += trade.RealizedPnL

	l.logger.Info("Position closed",
		zap.String("id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", trade.RealizedPnL),
		zap.Float64("available_capital", l.availableCapital))

	return trade, nil
}

// TotalEquity is available capital plus the unrealized P&L of all open
// trades, marked at the latest known price. Trades without a price fall
// back to their entry price (zero unrealized contribution).
func (l *Ledger) TotalEquity(latestPrice func(symbol string) (float64, bool)) float64 {
	equity := l.availableCapital
	for _, t := range l.open {
		price, ok := latestPrice(t.Symbol)
		if !ok {
			price = t.EntryPrice
		}
		equity += t.UnrealizedPnL(price)
	}
	return equity
}

// CommittedNotional is the total entry notional of all open trades, i.e.
// the capital currently deployed. Used for the portfolio exposure check.
func (l *Ledger) CommittedNotional() float64 {
	var total float64
	for _, t := range l.open {
		total += t.Notional()
	}
	return total
}

// Position returns the signed net size held for a symbol.
func (l *Ledger) Position(symbol string) float64 {
	return l.portfolio[symbol]
}

// OpenCount returns the number of open trades.
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// OpenTrades returns the open trades in no particular order.
func (l *Ledger) OpenTrades() []*models.Trade {
	out := make([]*models.Trade, 0, len(l.open))
	for _, t := range l.open {
		out = append(out, t)
	}
	return out
}

// ClosedTrades returns the closed trades in close order.
func (l *Ledger) ClosedTrades() []*models.Trade {
	out := make([]*models.Trade, len(l.closed))
	copy(out, l.closed)
	return out
}

// Portfolio returns a copy of the symbol -> net size map.
func (l *Ledger) Portfolio() map[string]float64 {
	out := make(map[string]float64, len(l.portfolio))
	for k, v := range l.portfolio {
		out[k] = v
	}
	return out
}

// AvailableCapital returns the capital free for new trades.
func (l *Ledger) AvailableCapital() float64 {
	return l.availableCapital
}

// TotalCapital returns the configured starting capital.
func (l *Ledger) TotalCapital() float64 {
	return l.totalCapital
}

// Results returns the cumulative win/loss counters and realized P&L.
func (l *Ledger) Results() (wins, losses int, totalPnL float64) {
	return l.wins, l.losses, l.totalPnL
}

func defaultLevel(side models.Side, price, fraction float64, takeProfit bool) float64 {
	up := takeProfit == (side == models.SideBuy)
	if up {
		return price * (1 + fraction)
	}
	return price * (1 - fraction)
}

func validateLevels(side models.Side, price, stop, take float64) error {
	if side == models.SideBuy {
		if stop >= price || take <= price {
			return fmt.Errorf("%w: buy requires stop %.2f < entry %.2f < target %.2f",
				ErrInvalidLevels, stop, price, take)
		}
		return nil
	}
	if stop <= price || take >= price {
		return fmt.Errorf("%w: sell requires target %.2f < entry %.2f < stop %.2f",
			ErrInvalidLevels, take, price, stop)
	}
	return nil
}

func ptr(v float64) *float64 {
	return &v
}
