package models

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of a trade. A trade is created PENDING,
// becomes EXECUTED on its simulated fill, and ends CLOSED. It is never
// resurrected.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusClosed   Status = "CLOSED"
)

// CloseReason records which exit condition closed a trade.
type CloseReason string

const (
	ReasonStopLoss   CloseReason = "STOP_LOSS"
	ReasonTakeProfit CloseReason = "TAKE_PROFIT"
	ReasonTimeLimit  CloseReason = "TIME_LIMIT"
	ReasonEmergency  CloseReason = "EMERGENCY"
	ReasonShutdown   CloseReason = "SHUTDOWN"
	ReasonManual     CloseReason = "MANUAL"
)

// Trade represents a single simulated position, open or closed.
type Trade struct {
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	Side       Side     `json:"side"`
	Size       float64  `json:"size"`
	EntryPrice float64  `json:"entry_price"`
	Strategy   string   `json:"strategy"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`

	Status    Status    `json:"status"`
	EntryTime time.Time `json:"entry_time"`

	// Set on close.
	ExitPrice   float64     `json:"exit_price,omitempty"`
	ExitTime    time.Time   `json:"exit_time,omitempty"`
	RealizedPnL float64     `json:"realized_pnl"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
}

// NewTrade creates a pending trade with a unique id.
func NewTrade(symbol string, side Side, size, price float64, strategy string, stopLoss, takeProfit *float64, now time.Time) *Trade {
	return &Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Size:       size,
		EntryPrice: price,
		Strategy:   strategy,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     StatusPending,
		EntryTime:  now,
	}
}

// Notional is the cash value of the position at its entry price.
func (t *Trade) Notional() float64 {
	return t.Size * t.EntryPrice
}

// IsOpen reports whether the trade has not yet reached a terminal state.
func (t *Trade) IsOpen() bool {
	return t.Status != StatusClosed
}

// UnrealizedPnL is the current mark-to-market P&L of the open trade.
func (t *Trade) UnrealizedPnL(currentPrice float64) float64 {
	if t.Side == SideBuy {
		return (currentPrice - t.EntryPrice) * t.Size
	}
	return (t.EntryPrice - currentPrice) * t.Size
}

// ShouldStopLoss reports whether the stop-loss level has been crossed.
func (t *Trade) ShouldStopLoss(currentPrice float64) bool {
	if t.StopLoss == nil {
		return false
	}
	if t.Side == SideBuy {
		return currentPrice <= *t.StopLoss
	}
	return currentPrice >= *t.StopLoss
}

// ShouldTakeProfit reports whether the take-profit level has been crossed.
func (t *Trade) ShouldTakeProfit(currentPrice float64) bool {
	if t.TakeProfit == nil {
		return false
	}
	if t.Side == SideBuy {
		return currentPrice >= *t.TakeProfit
	}
	return currentPrice <= *t.TakeProfit
}

// Age is the time the trade has been open.
func (t *Trade) Age(now time.Time) time.Duration {
	return now.Sub(t.EntryTime)
}

// Close records the exit fill and computes realized P&L.
func (t *Trade) Close(exitPrice float64, reason CloseReason, now time.Time) {
	t.ExitPrice = exitPrice
	t.ExitTime = now
	t.CloseReason = reason
	t.RealizedPnL = t.UnrealizedPnL(exitPrice)
	t.Status = StatusClosed
}

// SignedSize is the portfolio delta the trade contributes: positive for a
// buy, negative for a sell.
func (t *Trade) SignedSize() float64 {
	if t.Side == SideBuy {
		return t.Size
	}
	return -t.Size
}
