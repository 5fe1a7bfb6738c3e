package trader

import (
	"fmt"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"go.uber.org/zap"
)

// RiskController enforces per-trade admission limits and portfolio-level
// circuit breakers, and tracks the daily risk counters. Like the ledger it
// is not internally locked; the engine serializes access.
type RiskController struct {
	logger  *zap.Logger
	trading *config.Trading
	risk    *config.Risk
	capital float64

	dailyPnL         float64
	tradesToday      int
	maxDrawdownToday float64
	day              string // UTC date of the last observation, e.g. "2026-08-25"
}

// NewRiskController creates a risk controller for the configured limits.
func NewRiskController(cfg *config.Config, logger *zap.Logger) *RiskController {
	return &RiskController{
		logger:  logger.Named("risk"),
		trading: &cfg.Trading,
		risk:    &cfg.Risk,
		capital: cfg.Trading.InitialCapital,
	}
}

// CanOpen is the admission gate checked before any trade is recorded as
// open. It returns false with a reason when a limit would be exceeded;
// rejections are expected, frequent and non-fatal.
func (r *RiskController) CanOpen(openCount int, committedNotional float64) (bool, string) {
	if openCount >= r.trading.MaxPositions {
		return false, fmt.Sprintf("open positions %d at limit %d", openCount, r.trading.MaxPositions)
	}
	maxExposure := r.capital * r.trading.MaxPortfolioExposure
	if committedNotional > maxExposure {
		return false, fmt.Sprintf("portfolio exposure %.2f exceeds limit %.2f", committedNotional, maxExposure)
	}
	return true, ""
}

// RecordOpen accounts for a newly opened trade.
func (r *RiskController) RecordOpen(now time.Time) {
	r.rollDay(now)
	r.tradesToday++
}

// RecordClose accounts for a closed trade's realized P&L.
func (r *RiskController) RecordClose(pnl float64, now time.Time) {
	r.rollDay(now)
	r.dailyPnL += pnl
}

// Limit codes returned by CheckLimits.
const (
	LimitDailyLoss = "daily_loss"
	LimitDrawdown  = "drawdown"
)

// CheckLimits evaluates the daily-loss and drawdown circuit breakers
// against current equity. A true result demands emergency liquidation;
// limit identifies which breaker fired and detail is human-readable.
func (r *RiskController) CheckLimits(equity float64, now time.Time) (limit, detail string, breached bool) {
	r.rollDay(now)

	dailyLimit := -r.capital * r.risk.MaxDailyLoss
	if r.dailyPnL < dailyLimit {
		r.logger.Error("Daily loss limit reached",
			zap.Float64("daily_pnl", r.dailyPnL),
			zap.Float64("limit", dailyLimit))
		return LimitDailyLoss,
			fmt.Sprintf("daily loss %.2f below limit %.2f", r.dailyPnL, dailyLimit), true
	}

	drawdown := (r.capital - equity) / r.capital
	if drawdown > r.maxDrawdownToday {
		r.maxDrawdownToday = drawdown
	}
	if drawdown > r.risk.MaxDrawdown {
		r.logger.Error("Max drawdown reached",
			zap.Float64("drawdown", drawdown),
			zap.Float64("limit", r.risk.MaxDrawdown))
		return LimitDrawdown,
			fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%%", 100*drawdown, 100*r.risk.MaxDrawdown), true
	}

	return "", "", false
}

// ExitReason evaluates the exit conditions for an open trade in fixed
// priority order: stop-loss, then take-profit, then time limit. At most one
// reason fires per evaluation.
func (r *RiskController) ExitReason(t *models.Trade, price float64, now time.Time) (models.CloseReason, bool) {
	switch {
	case t.ShouldStopLoss(price):
		return models.ReasonStopLoss, true
	case t.ShouldTakeProfit(price):
		return models.ReasonTakeProfit, true
	case t.Age(now) > r.MaxHold():
		return models.ReasonTimeLimit, true
	}
	return "", false
}

// MaxHold returns the configured maximum position hold duration.
func (r *RiskController) MaxHold() time.Duration {
	return time.Duration(r.trading.MaxHoldHours * float64(time.Hour))
}

// DailyPnL returns today's cumulative realized P&L.
func (r *RiskController) DailyPnL() float64 {
	return r.dailyPnL
}

// TradesToday returns the number of trades opened today.
func (r *RiskController) TradesToday() int {
	return r.tradesToday
}

// MaxDrawdownToday returns the worst drawdown fraction observed today.
func (r *RiskController) MaxDrawdownToday() float64 {
	return r.maxDrawdownToday
}

// rollDay resets the daily counters when the UTC date changes. The daily
// boundary policy is a UTC wall-clock day; see DESIGN.md.
func (r *RiskController) rollDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if r.day == day {
		return
	}
	if r.day != "" {
		r.logger.Info("Daily risk counters reset",
			zap.String("day", day),
			zap.Float64("previous_daily_pnl", r.dailyPnL),
			zap.Int("previous_trades", r.tradesToday))
	}
	r.day = day
	r.dailyPnL = 0
	r.tradesToday = 0
	r.maxDrawdownToday = 0
}
