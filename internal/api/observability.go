package api

import (
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arena-shooter/internal/game"
)

// Rejection reasons. Label values stay bounded.
const (
	RejectRateLimit   = "rate_limit"
	RejectOrigin      = "origin"
	RejectWSTotal     = "ws_total_limit"
	RejectWSPerIP     = "ws_ip_limit"
	RejectWSFlood     = "ws_flood"
	RejectWSMalformed = "ws_malformed"
)

// Metrics with bounded cardinality (no per-player labels to prevent DoS)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one simulation step",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.0167},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_players",
		Help: "Current number of players",
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_projectiles",
		Help: "Projectiles in flight",
	})

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_kills_total",
		Help: "Kills credited to a player",
	})

	pickupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_pickups_total",
		Help: "Power-ups collected",
	}, []string{"kind"}) // Bounded: the power-up catalog

	// Event log metrics
	eventLogWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_written",
		Help: "Audit records written since start",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped",
		Help: "Audit records dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections or frames rejected by limits, origin or decoding",
	}, []string{"reason"})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket frames by direction",
	}, []string{"direction"}) // "in", "out"

	wsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_dropped_total",
		Help: "Outbound frames dropped because a client's send buffer was full",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// DebugHandler builds the pprof, metrics and health mux.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	handler := DebugHandler(cfg)

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", fmt.Errorf("debug server: %w", err))
		}
	}()

	return nil
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency and status per chi route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordTick records step timing and world size
func RecordTick(duration time.Duration, snap *game.Snapshot) {
	tickDuration.Observe(duration.Seconds())
	playerCount.Set(float64(len(snap.Players)))
	projectileCount.Set(float64(len(snap.Projectiles)))
}

// RecordKill counts a credited kill
func RecordKill() {
	killsTotal.Inc()
}

// RecordPickup counts a collected power-up
func RecordPickup(kind game.Kind) {
	pickupsTotal.WithLabelValues(kind.String()).Inc()
}

// UpdateEventLogStats mirrors the audit log counters into gauges
func UpdateEventLogStats(stats map[string]any) {
	if v, ok := stats["written"].(uint64); ok {
		eventLogWritten.Set(float64(v))
	}
	if v, ok := stats["dropped"].(uint64); ok {
		eventLogDropped.Set(float64(v))
	}
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// RecordWSMessage counts a frame in the given direction ("in" or "out")
func RecordWSMessage(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}

// RecordWSDropped counts an outbound frame lost to backpressure
func RecordWSDropped() {
	wsDroppedTotal.Inc()
}
