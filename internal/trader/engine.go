package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/feed"
	"crypto-sim-trader/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// State is the engine's lifecycle state. There are no intermediate states:
// Start is all-or-nothing and a stopped engine can be started again.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
)

// PerformanceStats is the aggregate reporting snapshot exposed to the
// presentation collaborator.
type PerformanceStats struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	TotalReturn      float64 `json:"total_return"`
	StartCapital     float64 `json:"start_capital"`
	CurrentEquity    float64 `json:"current_equity"`
	AvailableCapital float64 `json:"available_capital"`
	OpenPositions    int     `json:"open_positions"`
	DailyPnL         float64 `json:"daily_pnl"`
	TradesToday      int     `json:"trades_today"`
	MaxDrawdownToday float64 `json:"max_drawdown_today"`
}

// Engine is the trading orchestrator. It exclusively owns the position
// ledger and risk controller and runs the periodic control loop: strategy
// evaluation, position management, risk checks and performance updates,
// each on its own cadence. All state is guarded by one mutex; reporting
// reads go through the same mutex and are therefore strongly consistent.
type Engine struct {
	logger     *zap.Logger
	cfg        *config.Config
	market     feed.MarketData
	db         *gorm.DB
	strategies []Strategy

	mu          sync.Mutex
	state       State
	liquidating bool
	stopCause   string
	ledger      *Ledger
	risk        *RiskController
	startTime   time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	// now is replaceable in tests.
	now func() time.Time
}

// NewEngine creates a trading engine. db may be nil to disable the trade
// journal.
func NewEngine(logger *zap.Logger, cfg *config.Config, market feed.MarketData, db *gorm.DB) *Engine {
	e := &Engine{
		logger:     logger.Named("engine"),
		cfg:        cfg,
		market:     market,
		db:         db,
		strategies: EnabledStrategies(cfg),
		state:      StateStopped,
		ledger:     NewLedger(&cfg.Trading, logger),
		risk:       NewRiskController(cfg, logger),
		now:        time.Now,
	}
	market.SubscribeAlerts(e.handleAlert)
	return e
}

// Start brings the engine to Running: it starts the market feed and spawns
// the control loop. It fails, leaving the engine Stopped, when the feed
// cannot be started. Capital and trade history carry over across restarts.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return errors.New("engine is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := e.market.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start market feed: %w", err)
	}

	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	e.logger.Info("Trading engine starting",
		zap.Strings("symbols", e.cfg.Symbols),
		zap.Strings("strategies", names),
		zap.Float64("capital", e.ledger.TotalCapital()))

	e.state = StateRunning
	e.liquidating = false
	e.stopCause = ""
	e.startTime = e.now()
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.loop(ctx, e.done)
	return nil
}

// Stop is idempotent. It closes all open trades at their best-known price
// with reason SHUTDOWN, stops the market feed, and finalizes performance
// stats. No new trades open after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.logger.Info("Stopping trading engine...")

	now := e.now()
	for _, t := range e.ledger.OpenTrades() {
		price, ok := e.market.LatestPrice(t.Symbol)
		if !ok {
			// Feed is going away; close flat at entry rather than leak
			// the position.
			price = t.EntryPrice
		}
		e.closeTrade(t.ID, price, models.ReasonShutdown, now)
	}

	e.state = StateStopped
	if e.stopCause == "" {
		e.stopCause = "stopped: shutdown requested"
	}
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	e.market.Stop()
	e.logFinalStats()
}

// loop runs the three control cadences until the context is cancelled.
func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	strategyTicker := time.NewTicker(time.Duration(e.cfg.Engine.StrategyInterval) * time.Second)
	positionTicker := time.NewTicker(time.Duration(e.cfg.Engine.PositionInterval) * time.Second)
	perfTicker := time.NewTicker(time.Duration(e.cfg.Engine.PerformanceInterval) * time.Second)
	defer strategyTicker.Stop()
	defer positionTicker.Stop()
	defer perfTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-strategyTicker.C:
			e.runStrategies()
		case <-positionTicker.C:
			e.managePositions()
			e.checkRisk()
		case <-perfTicker.C:
			e.updatePerformance()
		}
	}
}

// runStrategies evaluates every enabled strategy against the latest
// snapshot of every symbol and applies the resulting intents. A single
// strategy's failure is logged and never blocks its peers.
func (e *Engine) runStrategies() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning || e.liquidating {
		return
	}

	for _, symbol := range e.cfg.Symbols {
		snap, ok := e.market.Snapshot(symbol)
		if !ok {
			continue // no data for this symbol yet
		}
		for _, strat := range e.strategies {
			intents, err := strat.Evaluate(snap, e.portfolioState())
			if err != nil {
				e.logger.Error("Strategy evaluation failed",
					zap.String("strategy", strat.Name()),
					zap.String("symbol", symbol),
					zap.Error(err))
				continue
			}
			for _, intent := range intents {
				e.applyIntent(intent, snap.Price)
			}
		}
	}
}

// applyIntent runs the admission check and opens the trade at the observed
// market price. Rejections are expected outcomes: they are logged and
// counted, never raised.
func (e *Engine) applyIntent(intent Intent, price float64) {
	ok, reason := e.risk.CanOpen(e.ledger.OpenCount(), e.ledger.CommittedNotional())
	if !ok {
		e.logger.Debug("Intent rejected by risk controller",
			zap.String("strategy", intent.Strategy),
			zap.String("symbol", intent.Symbol),
			zap.String("reason", reason))
		intentsRejected.WithLabelValues("admission").Inc()
		return
	}

	now := e.now()
	trade, err := e.ledger.Open(intent.Symbol, intent.Side, intent.Size, price,
		intent.Strategy, intent.StopLoss, intent.TakeProfit, now)
	if err != nil {
		cause := "invalid"
		switch {
		case errors.Is(err, ErrInsufficientCapital):
			cause = "insufficient_capital"
		case errors.Is(err, ErrInvalidLevels):
			cause = "invalid_levels"
		}
		e.logger.Warn("Failed to open trade",
			zap.String("strategy", intent.Strategy),
			zap.String("symbol", intent.Symbol),
			zap.Error(err))
		intentsRejected.WithLabelValues(cause).Inc()
		return
	}

	e.risk.RecordOpen(now)
	tradesOpened.WithLabelValues(trade.Strategy, string(trade.Side)).Inc()
}

// managePositions evaluates exit conditions for every open trade. The
// priority order is fixed: stop-loss before take-profit before time limit,
// and at most one close per trade per tick. A missing price skips the
// trade for this tick only.
func (e *Engine) managePositions() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}

	now := e.now()
	for _, t := range e.ledger.OpenTrades() {
		price, ok := e.market.LatestPrice(t.Symbol)
		if !ok {
			continue
		}
		reason, exit := e.risk.ExitReason(t, price, now)
		if !exit {
			continue
		}
		e.closeTrade(t.ID, price, reason, now)
	}
}

// checkRisk runs the portfolio circuit breakers and drives emergency
// liquidation when one fires.
func (e *Engine) checkRisk() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}

	now := e.now()
	if !e.liquidating {
		equity := e.ledger.TotalEquity(e.market.LatestPrice)
		limit, detail, breached := e.risk.CheckLimits(equity, now)
		if !breached {
			return
		}
		riskBreaches.WithLabelValues(limit).Inc()
		e.liquidating = true
		e.stopCause = "stopped: risk limit: " + detail
		e.logger.Error("Emergency liquidation triggered", zap.String("cause", detail))
	}

	e.liquidate(now)
}

// liquidate closes every open trade that has a known price with reason
// EMERGENCY. Trades without a price stay open and are retried on the next
// tick; the engine halts only once the open set is empty.
func (e *Engine) liquidate(now time.Time) {
	remaining := 0
	for _, t := range e.ledger.OpenTrades() {
		price, ok := e.market.LatestPrice(t.Symbol)
		if !ok {
			remaining++
			e.logger.Warn("No price for emergency close, will retry",
				zap.String("id", t.ID),
				zap.String("symbol", t.Symbol))
			continue
		}
		e.closeTrade(t.ID, price, models.ReasonEmergency, now)
	}

	if remaining == 0 {
		e.haltLocked()
	}
}

// haltLocked transitions to Stopped from inside the control loop. Caller
// holds e.mu.
func (e *Engine) haltLocked() {
	e.state = StateStopped
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.market.Stop()
	e.logger.Error("Trading engine halted", zap.String("cause", e.stopCause))
}

// closeTrade closes one trade through the ledger, updates risk counters,
// and journals the result. Caller holds e.mu.
func (e *Engine) closeTrade(id string, price float64, reason models.CloseReason, now time.Time) {
	trade, err := e.ledger.Close(id, price, reason, now)
	if err != nil {
		e.logger.Error("Failed to close trade", zap.String("id", id), zap.Error(err))
		return
	}
	e.risk.RecordClose(trade.RealizedPnL, now)
	tradesClosed.WithLabelValues(string(reason)).Inc()
	e.journal(trade)
}

// journal persists the closed trade, best-effort: a journal failure never
// disturbs engine state.
func (e *Engine) journal(t *models.Trade) {
	if e.db == nil {
		return
	}
	if err := e.db.Create(models.NewTradeRecord(t)).Error; err != nil {
		e.logger.Error("Failed to save trade record",
			zap.String("id", t.ID),
			zap.Error(err))
	}
}

// updatePerformance refreshes the reporting gauges and logs the periodic
// performance summary.
func (e *Engine) updatePerformance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}

	stats := e.performanceStatsLocked()
	equityGauge.Set(stats.CurrentEquity)
	availableCapitalGauge.Set(stats.AvailableCapital)
	openPositionsGauge.Set(float64(stats.OpenPositions))

	e.logger.Info("Performance update",
		zap.Int("total_trades", stats.TotalTrades),
		zap.Float64("win_rate", stats.WinRate),
		zap.Float64("total_pnl", stats.TotalPnL),
		zap.Float64("total_return", stats.TotalReturn),
		zap.Float64("equity", stats.CurrentEquity),
		zap.Int("open_positions", stats.OpenPositions),
		zap.Float64("daily_pnl", stats.DailyPnL))
}

// handleAlert receives market alerts from the feed. It only logs: alerts
// are advisory and never bypass the control loop.
func (e *Engine) handleAlert(a models.Alert) {
	e.logger.Info("Market alert received",
		zap.String("type", string(a.Type)),
		zap.String("symbol", a.Symbol))
}

func (e *Engine) logFinalStats() {
	e.mu.Lock()
	stats := e.performanceStatsLocked()
	cause := e.stopCause
	e.mu.Unlock()

	e.logger.Info("Trading engine stopped",
		zap.String("cause", cause),
		zap.Int("total_trades", stats.TotalTrades),
		zap.Float64("total_pnl", stats.TotalPnL),
		zap.Float64("final_equity", stats.CurrentEquity))
}

func (e *Engine) portfolioState() PortfolioState {
	return PortfolioState{
		AvailableCapital: e.ledger.AvailableCapital(),
		Positions:        e.ledger.Portfolio(),
		OpenCount:        e.ledger.OpenCount(),
	}
}

func (e *Engine) performanceStatsLocked() PerformanceStats {
	wins, losses, totalPnL := e.ledger.Results()
	total := wins + losses
	winRate := 0.0
	if total > 0 {
		winRate = float64(wins) / float64(total)
	}
	equity := e.ledger.TotalEquity(e.market.LatestPrice)
	capital := e.ledger.TotalCapital()

	return PerformanceStats{
		TotalTrades:      total,
		WinningTrades:    wins,
		LosingTrades:     losses,
		WinRate:          winRate,
		TotalPnL:         totalPnL,
		TotalReturn:      (equity - capital) / capital,
		StartCapital:     capital,
		CurrentEquity:    equity,
		AvailableCapital: e.ledger.AvailableCapital(),
		OpenPositions:    e.ledger.OpenCount(),
		DailyPnL:         e.risk.DailyPnL(),
		TradesToday:      e.risk.TradesToday(),
		MaxDrawdownToday: e.risk.MaxDrawdownToday(),
	}
}

// IsRunning reports whether the control loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning
}

// StopCause describes why the engine is stopped; empty while running.
func (e *Engine) StopCause() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCause
}

// StartTime returns when the engine last entered Running.
func (e *Engine) StartTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startTime
}

// OpenTrades returns value copies of the open trades.
func (e *Engine) OpenTrades() []models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	trades := e.ledger.OpenTrades()
	out := make([]models.Trade, len(trades))
	for i, t := range trades {
		out[i] = *t
	}
	return out
}

// ClosedTrades returns value copies of the closed trades, in close order.
func (e *Engine) ClosedTrades() []models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	trades := e.ledger.ClosedTrades()
	out := make([]models.Trade, len(trades))
	for i, t := range trades {
		out[i] = *t
	}
	return out
}

// Portfolio returns the symbol -> signed net size map.
func (e *Engine) Portfolio() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Portfolio()
}

// TotalEquity returns available capital plus unrealized P&L of open trades.
func (e *Engine) TotalEquity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.TotalEquity(e.market.LatestPrice)
}

// PerformanceStats returns the aggregate reporting snapshot.
func (e *Engine) PerformanceStats() PerformanceStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.performanceStatsLocked()
}
