package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"crypto-sim-trader/internal/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 60 * time.Second
	streamPingInterval = 20 * time.Second
)

// streamMessage is one entry of the data stream's message array. Trade
// messages carry T="t", quotes T="q", bars T="b".
type streamMessage struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S"`
	Price  float64 `json:"p"`
	Size   float64 `json:"s"`
	Bid    float64 `json:"bp"`
	Ask    float64 `json:"ap"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Msg    string  `json:"msg"`
}

type subscribeRequest struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
	Bars   []string `json:"bars"`
}

// StreamSource delivers market events over a websocket data stream. The
// initial dial and subscription happen synchronously in Start so the caller
// fails fast when market data is unavailable.
type StreamSource struct {
	cfg     *config.Feed
	symbols []string
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamSource creates a websocket stream source for the given symbols.
func NewStreamSource(cfg *config.Feed, symbols []string, logger *zap.Logger) *StreamSource {
	return &StreamSource{
		cfg:     cfg,
		symbols: symbols,
		logger:  logger.Named("stream"),
	}
}

// Start dials the stream, subscribes, and launches the read and ping pumps.
func (s *StreamSource) Start(ctx context.Context, sink Sink) error {
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("APCA-API-KEY-ID", s.cfg.APIKey)
		header.Set("APCA-API-SECRET-KEY", s.cfg.SecretKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.StreamURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to market data stream: %w", err)
	}

	sub := subscribeRequest{
		Action: "subscribe",
		Trades: s.symbols,
		Quotes: s.symbols,
		Bars:   s.symbols,
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to market data: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Connected to market data stream",
		zap.String("url", s.cfg.StreamURL),
		zap.Strings("symbols", s.symbols))

	go s.readPump(streamCtx, sink)
	go s.pingPump(streamCtx)

	return nil
}

// Stop closes the connection and waits for the read pump to exit.
func (s *StreamSource) Stop() {
	s.mu.Lock()
	cancel, conn, done := s.cancel, s.conn, s.done
	s.cancel, s.conn, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	conn.Close()
	<-done
}

func (s *StreamSource) readPump(ctx context.Context, sink Sink) {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.mu.Unlock()
	if conn == nil {
		return
	}
	defer close(done)

	conn.SetReadLimit(5 << 20)
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Market data connection closed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		s.dispatch(raw, sink)
	}
}

// dispatch decodes a message payload, which the stream delivers either as a
// single object or as an array of objects.
func (s *StreamSource) dispatch(raw []byte, sink Sink) {
	var msgs []streamMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		var single streamMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			s.logger.Warn("Failed to decode stream message", zap.Error(err))
			return
		}
		msgs = []streamMessage{single}
	}

	for _, msg := range msgs {
		switch msg.Type {
		case "t":
			sink.RecordTrade(msg.Symbol, msg.Price, msg.Size)
		case "b":
			sink.RecordBar(msg.Symbol, msg.Open, msg.High, msg.Low, msg.Close, msg.Volume)
		case "q":
			// Quotes carry no last-trade price; nothing to aggregate yet.
		case "success", "subscription":
			s.logger.Debug("Stream control message", zap.String("msg", msg.Msg))
		}
	}
}

func (s *StreamSource) pingPump(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
