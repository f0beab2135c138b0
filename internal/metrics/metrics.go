package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	ReconcileTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_bridge_reconcile_ticks_total",
		Help: "The total number of reconciliation ticks, by outcome.",
	}, []string{"result"})
	ActiveBindings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jellyfin_bridge_active_bindings",
		Help: "The current number of entity bindings with a live session.",
	})
	EntityUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jellyfin_bridge_entity_updates_total",
		Help: "The total number of display-state updates pushed to the host runtime.",
	})
	PushWakeups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jellyfin_bridge_push_wakeups_total",
		Help: "The total number of reconciliation passes triggered by push notifications.",
	})

	// Transport metrics
	TransportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_bridge_transport_errors_total",
		Help: "The total number of transport failures, by kind.",
	}, []string{"kind"})
	Reauths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jellyfin_bridge_reauth_total",
		Help: "The total number of re-authentication attempts.",
	})

	// Connectivity metrics
	ConnectivityState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jellyfin_bridge_connectivity_state",
		Help: "Current connectivity state: 0=connected, 1=degraded, 2=disconnected.",
	})

	// Command metrics
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellyfin_bridge_commands_total",
		Help: "The total number of dispatched remote commands, by command and result.",
	}, []string{"command", "result"})
)

// StartServer exposes the Prometheus endpoint in the background.
func StartServer(port int, path string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("metrics_server_start", slog.String("addr", srv.Addr), slog.String("path", path))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_failed", slog.String("error", err.Error()))
		}
	}()
}
