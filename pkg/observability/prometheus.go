package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowtrim"

// Prometheus implements every hook interface with Prometheus collectors.
type Prometheus struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	segments      prometheus.Histogram
	stageRemoved  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	cacheEvents   *prometheus.CounterVec
	cacheBytes    prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
// Use prometheus.DefaultRegisterer to expose them on promhttp.Handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		// Labels: status (ok, error)
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collapse",
			Name:      "runs_total",
			Help:      "Collapse runs by outcome",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collapse",
			Name:      "duration_seconds",
			Help:      "Wall time of a collapse run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		segments: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collapse",
			Name:      "input_segments",
			Help:      "Number of segments in collapsed tables",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 6),
		}),
		// Labels: stage
		stageRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collapse",
			Name:      "removed_segments_total",
			Help:      "Segments removed by each stage",
		}, []string{"stage"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collapse",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each collapse stage",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"stage"}),
		// Labels: key_type, event (hit, miss, set)
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache hits, misses and writes",
		}, []string{"key_type", "event"}),
		cacheBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}),
		// Labels: method, route, code
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *Prometheus) OnCollapseStart(_ context.Context, segments int) {
	p.segments.Observe(float64(segments))
}

func (p *Prometheus) OnStageComplete(_ context.Context, stage string, removed int, d time.Duration) {
	p.stageRemoved.WithLabelValues(stage).Add(float64(removed))
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Prometheus) OnCollapseComplete(_ context.Context, _ int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.runs.WithLabelValues(status).Inc()
	p.runDuration.Observe(d.Seconds())
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.Add(float64(size))
}

func (p *Prometheus) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ PipelineHooks = (*Prometheus)(nil)
	_ CacheHooks    = (*Prometheus)(nil)
	_ HTTPHooks     = (*Prometheus)(nil)
)
