package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrLayerNotFound       = fmt.Errorf("layer: %w", ErrNotFound)
	ErrProjectionNotFound  = fmt.Errorf("projection: %w", ErrNotFound)
	ErrNoInverse           = fmt.Errorf("inverse projection: %w", ErrUnsupported)
	ErrUnsupportedGeometry = fmt.Errorf("geometry: %w", ErrUnsupported)
	ErrUnsupportedSource   = fmt.Errorf("shape source: %w", ErrUnsupported)
	ErrNotConverged        = fmt.Errorf("iteration did not converge: %w", ErrInternal)
	ErrOutOfDomain         = fmt.Errorf("coordinate outside projection domain: %w", ErrInvalidInput)
	ErrNotReady            = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable  = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NoInverseError is returned when Invert is called on a projection
// that only works forward.
type NoInverseError struct {
	Projection string // Name of the projection
}

// Error implements the error interface.
func (e *NoInverseError) Error() string {
	return fmt.Sprintf("projection %s has no inverse", e.Projection)
}

// Unwrap returns the underlying error.
func (e *NoInverseError) Unwrap() error {
	return ErrNoInverse
}

// ConvergenceError reports an iterative solve that hit its iteration cap.
// Estimate holds the last iterate.
type ConvergenceError struct {
	Projection string  // Name of the projection
	Iterations int     // Iterations performed
	Residual   float64 // Magnitude of the last update
	Estimate   float64 // Last iterate
}

// Error implements the error interface.
func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: no convergence after %d iterations (last step %g)",
		e.Projection, e.Iterations, e.Residual)
}

// Unwrap returns the underlying error.
func (e *ConvergenceError) Unwrap() error {
	return ErrNotConverged
}

// UnsupportedGeometryError is returned by the map driver when a shape's
// geometry kind has no drawing operation.
type UnsupportedGeometryError struct {
	Kind  GeometryKind // Offending geometry kind
	Layer string       // Layer name (optional)
}

// Error implements the error interface.
func (e *UnsupportedGeometryError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("unsupported geometry %s in layer %s", e.Kind, e.Layer)
	}
	return fmt.Sprintf("unsupported geometry %s", e.Kind)
}

// Unwrap returns the underlying error.
func (e *UnsupportedGeometryError) Unwrap() error {
	return ErrUnsupportedGeometry
}

// SourceError represents an error while reading shapes from a source.
type SourceError struct {
	Source string // Source name or path
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("shape source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error, including projection
// parameters that cannot produce a valid projection.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
	Err     error  // Underlying error, if any
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error for %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidInput and the underlying error.
func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}
