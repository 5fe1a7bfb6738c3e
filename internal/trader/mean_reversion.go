package trader

import (
	"math"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"
)

// MeanReversionStrategy trades Bollinger-band extremes: buy below the lower
// band, sell above the upper band, with the take-profit target set to a
// configured fraction of the band mean.
type MeanReversionStrategy struct {
	cfg     *config.MeanReversion
	trading *config.Trading
}

// NewMeanReversionStrategy creates a mean reversion strategy with the given
// parameters.
func NewMeanReversionStrategy(cfg *config.MeanReversion, trading *config.Trading) *MeanReversionStrategy {
	return &MeanReversionStrategy{cfg: cfg, trading: trading}
}

func (s *MeanReversionStrategy) Name() string {
	return "mean_reversion"
}

// Evaluate computes the simple moving average and sample standard deviation
// over the configured window and emits an intent when the price sits
// outside the bands. Symbols with less history than the window are skipped.
func (s *MeanReversionStrategy) Evaluate(snap models.Snapshot, state PortfolioState) ([]Intent, error) {
	if snap.Price <= 0 || len(snap.History) < s.cfg.BollingerPeriods {
		return nil, nil
	}

	window := snap.History[len(snap.History)-s.cfg.BollingerPeriods:]
	meanPrice := meanOf(window)
	stdDev := sampleStdDev(window, meanPrice)

	upperBand := meanPrice + s.cfg.BollingerStd*stdDev
	lowerBand := meanPrice - s.cfg.BollingerStd*stdDev

	var side models.Side
	switch {
	case snap.Price < lowerBand:
		side = models.SideBuy
	case snap.Price > upperBand:
		side = models.SideSell
	default:
		return nil, nil
	}

	relVolatility := 0.0
	if meanPrice > 0 {
		relVolatility = stdDev / meanPrice
	}
	size := positionSize(snap.Price, relVolatility, state.AvailableCapital, s.trading)
	if size <= 0 {
		return nil, nil
	}

	target := meanPrice * s.cfg.ReversionTarget
	return []Intent{{
		Symbol:     snap.Symbol,
		Side:       side,
		Size:       size,
		TakeProfit: &target,
		Strategy:   s.Name(),
	}}, nil
}

func meanOf(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// sampleStdDev matches the usual n-1 denominator for a sample.
func sampleStdDev(s []float64, mean float64) float64 {
	if len(s) < 2 {
		return 0
	}
	var sq float64
	for _, v := range s {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(s)-1))
}
