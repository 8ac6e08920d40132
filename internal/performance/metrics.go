// Package performance exposes Prometheus metrics for the data plane, the
// publisher and the notification path.
package performance

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scenecast"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing, so callers need not check whether metrics are
// enabled.
type Metrics struct {
	registry *prometheus.Registry

	published      prometheus.Counter
	lookups        *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	broadcasts     *prometheus.CounterVec
	encodeSeconds  *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
}

// Operation is a single timed texture encode
type Operation struct {
	observer prometheus.Observer
	start    time.Time
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_published_total",
			Help:      "Chunks installed in the store.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Data-plane lookups by resource and result.",
		}, []string{"resource", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Push notifications by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Websocket announcements by result.",
		}, []string{"result"}),
		encodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "texture_encode_seconds",
			Help:      "Time spent re-encoding textures.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"format"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.published,
		m.lookups,
		m.notifications,
		m.broadcasts,
		m.encodeSeconds,
		m.requests,
		m.requestSeconds,
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterGauge adds a gauge whose value is read from fn at scrape time
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
	if err := m.registry.Register(gauge); err != nil {
		return errors.Wrapf(err, "register gauge %s", name)
	}
	return nil
}

// ChunkPublished counts one store publish
func (m *Metrics) ChunkPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

// Lookup counts a data-plane lookup of resource ("chunk" or "texture")
func (m *Metrics) Lookup(resource string, hit bool) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(resource, result(hit, "hit", "miss")).Inc()
}

// Notification counts one push notification attempt
func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(ok, "ok", "failed")).Inc()
}

// Broadcast counts one websocket announcement
func (m *Metrics) Broadcast(queued bool) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(result(queued, "queued", "dropped")).Inc()
}

// StartEncode begins timing a texture encode in format
func (m *Metrics) StartEncode(format string) *Operation {
	if m == nil {
		return nil
	}
	return &Operation{
		observer: m.encodeSeconds.WithLabelValues(format),
		start:    time.Now(),
	}
}

// End records the elapsed time
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.observer.Observe(time.Since(o.start).Seconds())
}

// InstrumentRoute wraps h with request counting and latency under route
func (m *Metrics) InstrumentRoute(route string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		m.requestSeconds.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h),
	)
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
