package trader

import (
	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"
)

// Intent is a proposed trade emitted by a strategy, not yet admitted by the
// risk controller. Protective levels left nil fall back to the ledger's
// configured defaults.
type Intent struct {
	Symbol     string
	Side       models.Side
	Size       float64
	StopLoss   *float64
	TakeProfit *float64
	Strategy   string
}

// PortfolioState is the read-only view of the ledger handed to strategies.
type PortfolioState struct {
	AvailableCapital float64
	Positions        map[string]float64 // symbol -> signed net size
	OpenCount        int
}

// Position returns the signed net size held for a symbol.
func (p PortfolioState) Position(symbol string) float64 {
	return p.Positions[symbol]
}

// Strategy evaluates a market snapshot against the current portfolio and
// proposes zero or more trade intents. Implementations are stateless: they
// never mutate engine state and may be called from any goroutine.
type Strategy interface {
	Name() string
	Evaluate(snap models.Snapshot, state PortfolioState) ([]Intent, error)
}

// EnabledStrategies builds the static list of strategy instances from
// configuration. A disabled strategy contributes no instance at all.
func EnabledStrategies(cfg *config.Config) []Strategy {
	var out []Strategy
	if cfg.Strategies.Momentum.Enabled {
		out = append(out, NewMomentumStrategy(&cfg.Strategies.Momentum, &cfg.Trading))
	}
	if cfg.Strategies.MeanReversion.Enabled {
		out = append(out, NewMeanReversionStrategy(&cfg.Strategies.MeanReversion, &cfg.Trading))
	}
	if cfg.Strategies.Arbitrage.Enabled {
		out = append(out, ArbitrageStrategy{})
	}
	if cfg.Strategies.MLPredictor.Enabled {
		out = append(out, MLPredictorStrategy{})
	}
	return out
}

// positionSize computes a volatility-adjusted size for a new trade. Higher
// observed volatility shrinks the size, floored at 10% of the unadjusted
// size; a single trade is further capped to a fraction of available capital.
func positionSize(price, volatility, availableCapital float64, trading *config.Trading) float64 {
	if price <= 0 {
		return 0
	}

	maxSize := trading.MaxPositionNotional / price

	volatilityAdjustment := 1 - volatility*10
	if volatilityAdjustment < 0.1 {
		volatilityAdjustment = 0.1
	}
	adjusted := maxSize * volatilityAdjustment

	cap := availableCapital / price * trading.PerTradeCapFraction
	if adjusted > cap {
		return cap
	}
	return adjusted
}
