package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the order daemon.
type Metrics struct {
	OrdersPlaced    *prometheus.CounterVec // labels: kind=SUPER|FOREVER
	OrdersCancelled prometheus.Counter
	OrdersRejected  prometheus.Counter
	LegUpdates      prometheus.Counter
	TrailingMoves   prometheus.Counter
	OCOAutoCancels  prometheus.Counter
	Inconsistencies prometheus.Counter

	GatewayErrors  *prometheus.CounterVec // labels: op
	GatewayLatency *prometheus.HistogramVec

	FeedReconnects prometheus.Counter
	DroppedTicks   prometheus.Counter

	DispatchDepth prometheus.Gauge
	TrackedTrails prometheus.Gauge
	WSClients     prometheus.Gauge

	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	JournalCommitDur prometheus.Histogram

	ReconcileRestores prometheus.Counter

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open

	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderd_orders_placed_total",
			Help: "Orders accepted by the broker gateway (by kind)",
		}, []string{"kind"}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_orders_cancelled_total",
			Help: "Cancel requests acknowledged by the broker",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_orders_rejected_total",
			Help: "Orders rejected by the exchange",
		}),
		LegUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_leg_updates_total",
			Help: "Leg status updates applied from the broker feed",
		}),
		TrailingMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_trailing_moves_total",
			Help: "Stop-loss modifications driven by the trailing engine",
		}),
		OCOAutoCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_oco_auto_cancels_total",
			Help: "Sibling legs auto-cancelled after the other leg traded",
		}),
		Inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_inconsistencies_total",
			Help: "Stale or contradictory broker updates detected",
		}),

		GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderd_gateway_errors_total",
			Help: "Broker gateway call failures (by operation)",
		}, []string{"op"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderd_gateway_latency_seconds",
			Help:    "Broker gateway call latency (by operation)",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),

		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_feed_reconnects_total",
			Help: "Broker feed WebSocket reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_dropped_ticks_total",
			Help: "Ticks dropped because the tick channel was full",
		}),

		DispatchDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderd_dispatch_depth",
			Help: "Jobs queued across dispatcher shards",
		}),
		TrackedTrails: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderd_tracked_trails",
			Help: "Orders currently tracked by the trailing engine",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderd_ws_clients",
			Help: "Connected event stream WebSocket clients",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderd_fanout_drops_total",
			Help: "Events dropped by the bus per subscriber",
		}, []string{"subscriber"}),
		JournalCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderd_journal_commit_duration_seconds",
			Help:    "SQLite event batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		ReconcileRestores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderd_reconcile_restores_total",
			Help: "Orders restored from the broker book by the reconciler",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderd_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderd_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	prometheus.MustRegister(
		m.OrdersPlaced,
		m.OrdersCancelled,
		m.OrdersRejected,
		m.LegUpdates,
		m.TrailingMoves,
		m.OCOAutoCancels,
		m.Inconsistencies,
		m.GatewayErrors,
		m.GatewayLatency,
		m.FeedReconnects,
		m.DroppedTicks,
		m.DispatchDepth,
		m.TrackedTrails,
		m.WSClients,
		m.FanoutDropsTotal,
		m.JournalCommitDur,
		m.ReconcileRestores,
		m.RedisCircuitBreakerState,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastUpdateTime time.Time `json:"last_update_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	OrdersTracked  int       `json:"orders_tracked"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastUpdateTime(t time.Time) {
	h.mu.Lock()
	h.LastUpdateTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetOrdersTracked(n int) {
	h.mu.Lock()
	h.OrdersTracked = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// The feed and the journal are load-bearing; Redis is a warm-start
	// optimization and only degrades.
	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	updateAge := ""
	if !h.LastUpdateTime.IsZero() {
		updateAge = time.Since(h.LastUpdateTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastUpdateTime  string  `json:"last_update_time"`
		UpdateAge       string  `json:"update_age"`
		OrdersTracked   int     `json:"orders_tracked"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastUpdateTime:  h.LastUpdateTime.Format(time.RFC3339),
		UpdateAge:       updateAge,
		OrdersTracked:   h.OrdersTracked,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
