package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolai",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolai",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Picture acquisition metrics
	PicturesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "pictures",
		Name:      "saved_total",
		Help:      "Total pictures persisted, by target mode",
	}, []string{"mode"})

	PictureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "pictures",
		Name:      "errors_total",
		Help:      "Total failed picture acquisitions, by stage",
	}, []string{"stage"})

	PictureFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poolai",
		Subsystem: "pictures",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of static map API calls",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	PictureBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poolai",
		Subsystem: "pictures",
		Name:      "size_bytes",
		Help:      "Size of persisted pictures",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 8),
	})

	// Dataset metrics
	DatasetSplits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "dataset",
		Name:      "splits_total",
		Help:      "Total dataset split runs completed",
	})

	DatasetFilesCopied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "dataset",
		Name:      "pairs_copied_total",
		Help:      "Total image/label pairs copied, by split",
	}, []string{"split"})

	// Cadastre metrics
	CadastreParcelsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "cadastre",
		Name:      "parcels_imported_total",
		Help:      "Total parcels loaded from cadastre archives",
	}, []string{"commune"})

	CadastreDownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "poolai",
		Subsystem: "cadastre",
		Name:      "download_duration_seconds",
		Help:      "Duration of cadastre archive downloads",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poolai",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poolai",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poolai",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "poolai",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "poolai",
		Subsystem: "db",
		Name:      "pool_empty_acquires_total",
		Help:      "Total times a connection had to be established when acquiring from pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat read by UpdateDBPoolMetrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	EmptyAcquireCount() int64
}

var lastEmptyAcquires atomic.Int64

// UpdateDBPoolMetrics copies pool gauges from a pgx pool snapshot.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))

	n := s.EmptyAcquireCount()
	if prev := lastEmptyAcquires.Swap(n); n > prev {
		DBPoolEmptyAcquires.Add(float64(n - prev))
	}
}
