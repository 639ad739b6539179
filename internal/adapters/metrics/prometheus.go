// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	gatherer            prometheus.Gatherer
	renderCounter       *prometheus.CounterVec
	renderDuration      *prometheus.HistogramVec
	shapesRead          *prometheus.CounterVec
	parts               *prometheus.CounterVec
	nonConvergence      *prometheus.CounterVec
	layersLoaded        prometheus.Gauge
	layersReady         prometheus.Gauge
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// builder registers metrics under one namespace.
type builder struct {
	factory   promauto.Factory
	namespace string
}

func (b builder) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help}, labels)
}

func (b builder) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: b.namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
}

func (b builder) gauge(name, help string) prometheus.Gauge {
	return b.factory.NewGauge(prometheus.GaugeOpts{Namespace: b.namespace, Name: name, Help: help})
}

// NewCollector creates a Prometheus collector. A nil registry uses the
// process-wide default registry, which only one collector may use.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	if namespace == "" {
		namespace = "travelmap"
	}
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	b := builder{factory: promauto.With(registerer), namespace: namespace}

	return &Collector{
		gatherer: gatherer,

		renderCounter:  b.counter("renders_total", "Layer draws by outcome", "layer", "status"),
		renderDuration: b.histogram("render_duration_seconds", "Layer draw duration in seconds", "layer"),
		shapesRead:     b.counter("shapes_read_total", "Shapes read from sources", "layer"),
		parts:          b.counter("parts_total", "Shape parts by preprocessing result", "layer", "result"),
		nonConvergence: b.counter("solver_nonconvergence_total",
			"Newton-Raphson solves that reached the iteration cap", "projection"),

		layersLoaded: b.gauge("layers_loaded", "Number of loaded layers"),
		layersReady:  b.gauge("layers_ready", "Number of layers ready to draw"),

		storageOperations: b.counter("storage_operations_total", "Storage operations by outcome", "operation", "status"),
		storageDuration:   b.histogram("storage_duration_seconds", "Storage operation duration in seconds", "operation"),
		cacheLookups:      b.counter("render_cache_lookups_total", "Render cache lookups by result", "result"),

		httpRequestsTotal:   b.counter("http_requests_total", "HTTP requests by route and status class", "method", "path", "status"),
		httpRequestDuration: b.histogram("http_request_duration_seconds", "HTTP request duration in seconds", "method", "path"),
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// IncRenderCount increments the render counter.
func (c *Collector) IncRenderCount(layer string, success bool) {
	c.renderCounter.WithLabelValues(layer, statusLabel(success)).Inc()
}

// ObserveRenderDuration records how long drawing a layer took.
func (c *Collector) ObserveRenderDuration(layer string, duration time.Duration) {
	c.renderDuration.WithLabelValues(layer).Observe(duration.Seconds())
}

// AddShapesRead adds to the shapes read counter.
func (c *Collector) AddShapesRead(layer string, n int) {
	c.shapesRead.WithLabelValues(layer).Add(float64(n))
}

// AddParts records preprocessing outcomes.
func (c *Collector) AddParts(layer, result string, n int) {
	c.parts.WithLabelValues(layer, result).Add(float64(n))
}

// IncNonConvergence counts solver runs that hit the iteration cap.
func (c *Collector) IncNonConvergence(projection string) {
	c.nonConvergence.WithLabelValues(projection).Inc()
}

// SetLayersLoaded sets the number of loaded layers.
func (c *Collector) SetLayersLoaded(count int) {
	c.layersLoaded.Set(float64(count))
}

// SetLayersReady sets the number of ready layers.
func (c *Collector) SetLayersReady(count int) {
	c.layersReady.Set(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncCacheLookup counts render cache hits and misses.
func (c *Collector) IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests per route template and status class.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := routePath(r)
		c.IncHTTPRequests(r.Method, path, statusToString(sw.code))
		c.ObserveHTTPDuration(r.Method, path, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// routePath returns the route template so layer ids do not become labels.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusToString buckets a status code into its class, e.g. "4xx".
func statusToString(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
