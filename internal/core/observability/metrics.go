package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var modeLabel atomic.Value

func init() {
	modeLabel.Store("cached")
	prometheus.MustRegister(serviceCollectors()...)
}

func SetMode(m string) {
	if m == "" {
		m = "cached"
	}
	modeLabel.Store(m)
}

func getMode() string {
	if s, ok := modeLabel.Load().(string); ok && s != "" {
		return s
	}
	return "cached"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "mode"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"method", "route", "status", "mode"},
	)

	codecOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digipin_codec_ops_total",
			Help: "Codec operations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cell payload cache results by tier and outcome.",
		},
		[]string{"tier", "outcome", "mode"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_events_total",
			Help: "Lookup events by result (queued, dropped, failed).",
		},
		[]string{"result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func serviceCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		codecOpsTotal,
		cacheResults,
		cacheOpTotal,
		redisOpDuration,
		eventsTotal,
		buildInfo,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := getMode()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, m).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, m).Observe(durationSeconds)
}

// ObserveCodec counts one codec call; outcome is "ok" or the failure class.
func ObserveCodec(op, outcome string) {
	codecOpsTotal.WithLabelValues(op, outcome).Inc()
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit", getMode()).Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss", getMode()).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheNil):
		result = "nil"
	default:
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

// ErrCacheNil is passed to ObserveCacheOp for lookups that completed
// without finding the key.
var ErrCacheNil = errors.New("cache: key not found")

func IncEvent(result string) {
	eventsTotal.WithLabelValues(result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
