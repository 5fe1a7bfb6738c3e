package trader

import (
	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"
)

// MomentumStrategy buys trailing strength in calm markets and unwinds longs
// when momentum turns negative.
type MomentumStrategy struct {
	cfg     *config.Momentum
	trading *config.Trading
}

// NewMomentumStrategy creates a momentum strategy with the given parameters.
func NewMomentumStrategy(cfg *config.Momentum, trading *config.Trading) *MomentumStrategy {
	return &MomentumStrategy{cfg: cfg, trading: trading}
}

func (s *MomentumStrategy) Name() string {
	return "momentum"
}

// Evaluate emits a buy intent when momentum exceeds the entry threshold
// while volatility is below the cap and enough history exists, and a sell
// intent for the full net position when momentum drops below the negative
// threshold while net long.
func (s *MomentumStrategy) Evaluate(snap models.Snapshot, state PortfolioState) ([]Intent, error) {
	if snap.Price <= 0 {
		return nil, nil
	}

	switch {
	case snap.Momentum > s.cfg.EntryThreshold &&
		snap.Volatility < s.cfg.MaxVolatility &&
		len(snap.History) > s.cfg.LookbackPeriods:

		size := positionSize(snap.Price, snap.Volatility, state.AvailableCapital, s.trading)
		if size <= 0 {
			return nil, nil
		}
		return []Intent{{
			Symbol:   snap.Symbol,
			Side:     models.SideBuy,
			Size:     size,
			Strategy: s.Name(),
		}}, nil

	case snap.Momentum < -s.cfg.EntryThreshold && state.Position(snap.Symbol) > 0:
		return []Intent{{
			Symbol:   snap.Symbol,
			Side:     models.SideSell,
			Size:     state.Position(snap.Symbol),
			Strategy: s.Name(),
		}}, nil
	}

	return nil, nil
}
