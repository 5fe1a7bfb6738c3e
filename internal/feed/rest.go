package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-sim-trader/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// latestTradesResponse is the payload of the data API's latest-trades
// endpoint: a map of symbol to its most recent trade print.
type latestTradesResponse struct {
	Trades map[string]struct {
		Price float64 `json:"p"`
		Size  float64 `json:"s"`
	} `json:"trades"`
}

// RestSource polls a crypto data REST API for the latest trade per symbol.
// It is the fallback for environments where the websocket stream is not
// reachable; bars are not available on this path, so volatility stays zero.
type RestSource struct {
	cfg     *config.Feed
	symbols []string
	client  *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRestSource creates a polling REST source for the given symbols.
func NewRestSource(cfg *config.Feed, symbols []string, logger *zap.Logger) *RestSource {
	client := resty.New().SetBaseURL(cfg.RestURL)
	if cfg.APIKey != "" {
		client.SetHeader("APCA-API-KEY-ID", cfg.APIKey)
		client.SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey)
	}

	return &RestSource{
		cfg:     cfg,
		symbols: symbols,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		logger:  logger.Named("rest-feed"),
	}
}

// Start performs one synchronous poll to verify connectivity, then launches
// the polling loop.
func (r *RestSource) Start(ctx context.Context, sink Sink) error {
	if err := r.poll(ctx, sink); err != nil {
		return fmt.Errorf("market data API unavailable: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	interval := time.Duration(r.cfg.PollInterval) * time.Second
	r.logger.Info("Starting market data polling", zap.Duration("interval", interval))

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if err := r.poll(pollCtx, sink); err != nil {
					r.logger.Error("Market data poll failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// Stop cancels the polling loop and waits for it to exit.
func (r *RestSource) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

func (r *RestSource) poll(ctx context.Context, sink Sink) error {
	// Wait for the rate limiter
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(r.symbols, ",")).
		SetResult(&latestTradesResponse{}).
		Get("/latest/trades")
	if err != nil {
		return fmt.Errorf("failed to fetch latest trades: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("latest trades request failed with status %d", resp.StatusCode())
	}

	result := resp.Result().(*latestTradesResponse)
	for symbol, trade := range result.Trades {
		sink.RecordTrade(symbol, trade.Price, trade.Size)
	}
	return nil
}
