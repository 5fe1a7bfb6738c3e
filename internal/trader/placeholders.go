package trader

import "crypto-sim-trader/internal/models"

// ArbitrageStrategy is a placeholder: cross-exchange arbitrage needs
// multiple exchange connections, which this single-feed engine does not
// have. It never proposes intents.
type ArbitrageStrategy struct{}

func (ArbitrageStrategy) Name() string { return "arbitrage" }

func (ArbitrageStrategy) Evaluate(models.Snapshot, PortfolioState) ([]Intent, error) {
	return nil, nil
}

// MLPredictorStrategy is a placeholder for a model-driven strategy. It
// never proposes intents.
type MLPredictorStrategy struct{}

func (MLPredictorStrategy) Name() string { return "ml_predictor" }

func (MLPredictorStrategy) Evaluate(models.Snapshot, PortfolioState) ([]Intent, error) {
	return nil, nil
}
