// Package health exposes the controller's liveness, readiness and metrics
// over HTTP.
//
//	/live     process liveness
//	/ready    ready while a worker is running
//	/metrics  Prometheus exposition
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srediag/sumipc/internal/logging"
)

// Namespace prefixes every metric.
const Namespace = "sumipc"

// DefaultGoroutineThreshold fails liveness when exceeded.
const DefaultGoroutineThreshold = 1000

// ErrNoWorker is reported by the readiness check while no worker runs.
var ErrNoWorker = errors.New("health: no worker running")

var internalLogger = logging.New("health", nil)

// Server serves the health endpoints of one controller.
type Server struct {
	Metrics *Metrics

	registry *prometheus.Registry
	checks   healthcheck.Handler
	worker   atomic.Bool
	srv      *http.Server
}

// New returns a server with its own registry, metrics and checks.
func New() *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		Metrics:  NewMetrics(reg),
		registry: reg,
		checks:   healthcheck.NewMetricsHandler(reg, Namespace),
	}
	s.checks.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineThreshold))
	s.checks.AddReadinessCheck("worker", func() error {
		if !s.worker.Load() {
			return ErrNoWorker
		}
		return nil
	})
	return s
}

// SetWorkerRunning flips readiness.
func (s *Server) SetWorkerRunning(running bool) {
	s.worker.Store(running)
}

// Registry returns the registry the metrics live in.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Handler routes the health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", s.checks.LiveEndpoint)
	mux.HandleFunc("/ready", s.checks.ReadyEndpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr has port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("health: listen %s: %w", addr, err)
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			internalLogger.Errorf("serve: %v", err)
		}
	}()
	internalLogger.Infof("serving health on %s", l.Addr())
	return l.Addr(), nil
}

// Shutdown stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
