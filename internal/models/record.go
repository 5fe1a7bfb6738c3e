package models

import "gorm.io/gorm"

// TradeRecord is the journal row persisted for every closed trade.
type TradeRecord struct {
	gorm.Model
	TradeID    string  `json:"trade_id" gorm:"uniqueIndex"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
	Strategy   string  `json:"strategy"`
	Reason     string  `json:"reason"`
	EntryTime  int64   `json:"entry_time"`
	ExitTime   int64   `json:"exit_time"`
}

// NewTradeRecord flattens a closed trade into its journal row.
func NewTradeRecord(t *Trade) *TradeRecord {
	return &TradeRecord{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		PnL:        t.RealizedPnL,
		Strategy:   t.Strategy,
		Reason:     string(t.CloseReason),
		EntryTime:  t.EntryTime.Unix(),
		ExitTime:   t.ExitTime.Unix(),
	}
}
