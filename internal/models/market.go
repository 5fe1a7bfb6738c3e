package models

import "time"

// Snapshot is a read-only view of a symbol's current price and derived
// statistics, supplied by the market feed.
type Snapshot struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	PriceChange float64   `json:"price_change"` // fraction since previous trade
	Volatility  float64   `json:"volatility"`   // fraction, from latest bar range
	Momentum    float64   `json:"momentum"`     // fraction over the momentum window
	TradeCount  int64     `json:"trade_count"`
	History     []float64 `json:"history"` // ordered, oldest first
	UpdatedAt   time.Time `json:"updated_at"`
}

// AlertType classifies a market alert.
type AlertType string

const (
	AlertPriceSpike  AlertType = "PRICE_SPIKE"
	AlertVolumeSpike AlertType = "VOLUME_SPIKE"
)

// Alert is a threshold-based market event raised by the feed.
type Alert struct {
	Type      AlertType `json:"type"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price,omitempty"`
	Change    float64   `json:"change,omitempty"`
	Volume    float64   `json:"volume,omitempty"`
	AvgVolume float64   `json:"avg_volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
