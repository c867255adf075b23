// Package metrics defines the Prometheus collectors exported by overlayd.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coordinator metrics
var (
	// OverlayRefs tracks the current reference count of the lifecycle coordinator.
	OverlayRefs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlay_refs",
			Help: "Current number of outstanding overlay acquisitions",
		},
	)

	// OverlayObserving is 1 while an observation task is running.
	OverlayObserving = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlay_observing",
			Help: "Whether an observation task is currently running (0 or 1)",
		},
	)

	// OverlayTasksStarted counts observation tasks started.
	OverlayTasksStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overlay_tasks_started_total",
			Help: "Total observation tasks started",
		},
	)

	// OverlayEmissions counts slot emissions processed by the observation task.
	OverlayEmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_emissions_total",
			Help: "Slot emissions processed by kind (content/empty)",
		},
		[]string{"kind"},
	)

	// OverlayResourceErrors counts failed surface operations.
	OverlayResourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_resource_errors_total",
			Help: "Failed surface operations by operation (attach/update/detach/panic)",
		},
		[]string{"op"},
	)

	// OverlayAutoDismiss counts auto-dismiss timers by outcome.
	OverlayAutoDismiss = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlay_auto_dismiss_total",
			Help: "Auto-dismiss timers by result (scheduled/cancelled/fired)",
		},
		[]string{"result"},
	)
)

// Slot metrics
var (
	// SlotWrites counts content slot mutations by operation.
	SlotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_writes_total",
			Help: "Content slot writes by operation (show/dismiss/dismiss_stale/clear)",
		},
		[]string{"op"},
	)

	// SlotSubscribers tracks active slot subscriptions.
	SlotSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slot_subscribers",
			Help: "Current number of content slot subscribers",
		},
	)
)

// D-Bus metrics
var (
	// DBusCalls counts D-Bus method calls by method.
	DBusCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbus_calls_total",
			Help: "D-Bus method calls by method",
		},
		[]string{"method"},
	)

	// DBusClients tracks bus clients currently holding the overlay.
	DBusClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbus_clients",
			Help: "Bus clients currently holding at least one acquisition",
		},
	)
)

// NewRouter returns the HTTP router serving /metrics and /healthz.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}

// Server exposes the metrics router on a TCP address.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server listening on addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen errors are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server started", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "addr", s.srv.Addr, "error", err)
		}
	}()
}

// Stop shuts the server down, waiting up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
