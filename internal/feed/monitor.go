package feed

import (
	"context"
	"sync"
	"time"

	"crypto-sim-trader/internal/config"
	"crypto-sim-trader/internal/models"

	"go.uber.org/zap"
)

const volumeHistorySize = 100

// Monitor aggregates raw market events from a Source into per-symbol
// statistics and raises threshold-based alerts. It implements MarketData.
type Monitor struct {
	cfg    *config.Feed
	logger *zap.Logger
	source Source

	mu          sync.RWMutex
	latest      map[string]float64
	history     map[string][]float64
	volumes     map[string][]float64
	tradeCounts map[string]int64
	priceChange map[string]float64
	volatility  map[string]float64
	momentum    map[string]float64
	updatedAt   map[string]time.Time

	cbMu      sync.RWMutex
	callbacks []func(models.Alert)

	started bool
}

// NewMonitor creates a monitor backed by the given source.
func NewMonitor(cfg *config.Feed, source Source, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:         cfg,
		logger:      logger.Named("feed"),
		source:      source,
		latest:      make(map[string]float64),
		history:     make(map[string][]float64),
		volumes:     make(map[string][]float64),
		tradeCounts: make(map[string]int64),
		priceChange: make(map[string]float64),
		volatility:  make(map[string]float64),
		momentum:    make(map[string]float64),
		updatedAt:   make(map[string]time.Time),
	}
}

// Start connects the source. It returns the source's connection error
// unchanged, so callers can refuse to start when market data is unavailable.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if err := m.source.Start(ctx, m); err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return err
	}
	m.logger.Info("Market monitor started")
	return nil
}

// Stop disconnects the source. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	m.source.Stop()
	m.logger.Info("Market monitor stopped")
}

// SubscribeAlerts registers a callback for market alerts.
func (m *Monitor) SubscribeAlerts(fn func(models.Alert)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// LatestPrice returns the last trade price for a symbol.
func (m *Monitor) LatestPrice(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.latest[symbol]
	return p, ok
}

// Snapshot returns a self-consistent copy of the symbol's current state.
func (m *Monitor) Snapshot(symbol string) (models.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.latest[symbol]
	if !ok {
		return models.Snapshot{}, false
	}

	hist := make([]float64, len(m.history[symbol]))
	copy(hist, m.history[symbol])

	return models.Snapshot{
		Symbol:      symbol,
		Price:       price,
		PriceChange: m.priceChange[symbol],
		Volatility:  m.volatility[symbol],
		Momentum:    m.momentum[symbol],
		TradeCount:  m.tradeCounts[symbol],
		History:     hist,
		UpdatedAt:   m.updatedAt[symbol],
	}, true
}

// RecordTrade ingests a single trade print for a symbol.
func (m *Monitor) RecordTrade(symbol string, price, size float64) {
	if symbol == "" || price <= 0 {
		return
	}

	var alerts []models.Alert

	m.mu.Lock()
	oldPrice, hadPrice := m.latest[symbol]
	m.latest[symbol] = price
	m.updatedAt[symbol] = time.Now()
	m.tradeCounts[symbol]++

	m.history[symbol] = appendCapped(m.history[symbol], price, m.cfg.HistorySize)
	m.volumes[symbol] = appendCapped(m.volumes[symbol], size, volumeHistorySize)

	var change float64
	if hadPrice && oldPrice > 0 {
		change = (price - oldPrice) / oldPrice
	}
	m.priceChange[symbol] = change

	// Momentum over the trailing window of trade prices.
	if hist := m.history[symbol]; len(hist) > m.cfg.MomentumWindow {
		base := hist[len(hist)-m.cfg.MomentumWindow]
		if base > 0 {
			m.momentum[symbol] = (price - base) / base
		}
	}

	if change > m.cfg.PriceSpikeAlert || change < -m.cfg.PriceSpikeAlert {
		alerts = append(alerts, models.Alert{
			Type:      models.AlertPriceSpike,
			Symbol:    symbol,
			Price:     price,
			Change:    change,
			Timestamp: time.Now(),
		})
	}
	if vols := m.volumes[symbol]; len(vols) > 10 {
		avg := mean(vols)
		if avg > 0 && size > avg*m.cfg.VolumeSpikeAlert {
			alerts = append(alerts, models.Alert{
				Type:      models.AlertVolumeSpike,
				Symbol:    symbol,
				Volume:    size,
				AvgVolume: avg,
				Timestamp: time.Now(),
			})
		}
	}
	m.mu.Unlock()

	for _, a := range alerts {
		m.triggerAlert(a)
	}
}

// RecordBar ingests an aggregated bar for a symbol. Volatility is derived
// from the bar's high/low range.
func (m *Monitor) RecordBar(symbol string, open, high, low, close, volume float64) {
	if symbol == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if high > 0 && low > 0 {
		m.volatility[symbol] = (high - low) / low
	}
}

func (m *Monitor) triggerAlert(a models.Alert) {
	m.logger.Info("Market alert",
		zap.String("type", string(a.Type)),
		zap.String("symbol", a.Symbol),
		zap.Float64("change", a.Change))

	m.cbMu.RLock()
	cbs := make([]func(models.Alert), len(m.callbacks))
	copy(cbs, m.callbacks)
	m.cbMu.RUnlock()

	for _, fn := range cbs {
		fn(a)
	}
}

func appendCapped(s []float64, v float64, cap int) []float64 {
	s = append(s, v)
	if cap > 0 && len(s) > cap {
		s = s[len(s)-cap:]
	}
	return s
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
