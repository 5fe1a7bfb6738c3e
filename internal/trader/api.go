package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIServer exposes the engine's read-only queries to the presentation
// collaborator, plus Prometheus metrics. All handlers go through the
// engine's query methods and therefore see strongly consistent snapshots.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates the reporting API server for an engine.
func NewAPIServer(engine *Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/trades/open", s.openTradesHandler)
	mux.HandleFunc("/trades/closed", s.closedTradesHandler)
	mux.HandleFunc("/portfolio", s.portfolioHandler)
	mux.HandleFunc("/equity", s.equityHandler)
	mux.HandleFunc("/performance", s.performanceHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Running    bool   `json:"running"`
		StopCause  string `json:"stop_cause,omitempty"`
		StartTime  string `json:"start_time,omitempty"`
		Uptime     string `json:"uptime,omitempty"`
		OpenTrades int    `json:"open_trades"`
	}{
		Running:    s.engine.IsRunning(),
		StopCause:  s.engine.StopCause(),
		OpenTrades: len(s.engine.OpenTrades()),
	}
	if status.Running {
		start := s.engine.StartTime()
		status.StartTime = start.Format(time.RFC3339)
		status.Uptime = time.Since(start).String()
	}
	s.writeJSON(w, status)
}

func (s *APIServer) openTradesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.OpenTrades())
}

func (s *APIServer) closedTradesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.ClosedTrades())
}

func (s *APIServer) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Portfolio())
}

func (s *APIServer) equityHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, struct {
		TotalEquity float64 `json:"total_equity"`
	}{s.engine.TotalEquity()})
}

func (s *APIServer) performanceHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.PerformanceStats())
}
