package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auction_rebalancer/internal/core"
	"auction_rebalancer/internal/infrastructure/health"
)

// Server handles Prometheus metrics export and the health endpoint.
type Server struct {
	port    int
	logger  core.ILogger
	checker *health.HealthManager
	srv     *http.Server
}

// NewServer creates a new metrics server. checker may be nil; the health
// endpoint then reports ok unconditionally.
func NewServer(port int, logger core.ILogger, checker *health.HealthManager) *Server {
	return &Server{
		port:    port,
		logger:  logger.WithField("component", "metrics_server"),
		checker: checker,
	}
}

// Start starts the metrics HTTP server
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if s.checker == nil {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "ok",
				"time":   time.Now().Unix(),
			})
			return
		}
		report := s.checker.Report()
		if report.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting Prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}
