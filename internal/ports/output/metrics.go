package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncRenderCount increments the render counter.
	IncRenderCount(layer string, success bool)

	// ObserveRenderDuration records how long drawing a layer took.
	ObserveRenderDuration(layer string, duration time.Duration)

	// AddShapesRead adds to the number of shapes read from sources.
	AddShapesRead(layer string, n int)

	// AddParts records preprocessing outcomes by result
	// (kept, culled, shifted, excluded).
	AddParts(layer, result string, n int)

	// IncNonConvergence counts Newton-Raphson solves that hit the cap.
	IncNonConvergence(projection string)

	// SetLayersLoaded sets the number of loaded layers.
	SetLayersLoaded(count int)

	// SetLayersReady sets the number of ready layers.
	SetLayersReady(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)

	// IncCacheLookup counts render cache hits and misses.
	IncCacheLookup(hit bool)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncRenderCount implements MetricsCollector.
func (n *NoOpMetrics) IncRenderCount(_ string, _ bool) {}

// ObserveRenderDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveRenderDuration(_ string, _ time.Duration) {}

// AddShapesRead implements MetricsCollector.
func (n *NoOpMetrics) AddShapesRead(_ string, _ int) {}

// AddParts implements MetricsCollector.
func (n *NoOpMetrics) AddParts(_, _ string, _ int) {}

// IncNonConvergence implements MetricsCollector.
func (n *NoOpMetrics) IncNonConvergence(_ string) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// SetLayersReady implements MetricsCollector.
func (n *NoOpMetrics) SetLayersReady(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}

// IncCacheLookup implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookup(_ bool) {}
