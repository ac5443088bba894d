package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dirsweep/internal/logging"
)

var (
	// Core synchronization primitives
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server

	// Registry holds only dirsweep metrics so the textfile export does not
	// collide with the Go runtime metrics node_exporter already exposes.
	Registry = prometheus.NewRegistry()

	running atomic.Bool
)

// Init initializes all metrics subsystems and registers them.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initCleanupMetrics()
		initRunMetrics()

		registerCleanupMetrics()
		registerRunMetrics()

		// Initialize with default values so they appear in /metrics immediately
		LastRunTimestamp.Set(0)
		WorkersActive.Set(0)
	})
}

// SetRunning marks whether a run is in progress; reported by /health.
func SetRunning(v bool) {
	running.Store(v)
}

// StartServer starts the metrics HTTP server on addr.
// Exposes /metrics (Prometheus) and /health. Bind errors are returned
// synchronously; serve errors are logged.
func StartServer(addr string, logger *logging.Logger) error {
	Init()

	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Info("metrics server already running", "addr", currentSrv.Addr)
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{Registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/health", handleHealth)

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// ServerAddr returns the bound address of the running server, or "".
func ServerAddr() string {
	serverMutex.Lock()
	defer serverMutex.Unlock()
	if currentSrv == nil {
		return ""
	}
	return currentSrv.Addr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"healthy": true,
		"running": running.Load(),
	})
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *logging.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	currentSrv = nil
}

// WriteTextfile writes every dirsweep metric to path in the node_exporter
// textfile format. The file is replaced atomically.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
