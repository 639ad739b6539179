// Package projection implements the cartographic projections used to flatten
// geographic shapes: affine stages, equal-area and compromise world
// projections, and compound pipelines built from them.
//
// All projections work on a unit sphere in radians. A Projection is
// immutable after construction and safe for concurrent use.
package projection

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Projection transforms a planar coordinate into another planar coordinate.
//
// The first stage of a pipeline receives longitude and latitude in radians;
// later stages receive the cartesian output of the stage before them.
type Projection interface {
	// Name returns the registry name of the projection.
	Name() string

	// Project maps p forward. It never mutates its input.
	Project(p domain.Point) domain.Point

	// HasInverse reports whether Invert is supported.
	HasInverse() bool

	// Invert maps a projected point back. Projections without an inverse
	// return a *domain.NoInverseError.
	Invert(p domain.Point) (domain.Point, error)
}

// ProjectPoints converts each geographic position to radians and projects
// it. Order and count are preserved.
func ProjectPoints(p Projection, points []domain.LonLat) []domain.Point {
	out := make([]domain.Point, len(points))
	for i, ll := range points {
		out[i] = p.Project(ll.Radians())
	}
	return out
}

// InvertPoint inverts a projected point and converts the result to degrees.
func InvertPoint(p Projection, pt domain.Point) (domain.LonLat, error) {
	r, err := p.Invert(pt)
	if err != nil {
		return domain.LonLat{}, err
	}
	return r.Degrees(), nil
}

// Option configures projections that solve equations iteratively.
type Option func(*settings)

type settings struct {
	solver Solver
}

// WithSolver sets the Newton-Raphson solver used by iterative projections.
func WithSolver(s Solver) Option {
	return func(st *settings) {
		st.solver = s
	}
}

func applyOptions(opts []Option) settings {
	st := settings{solver: DefaultSolver()}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// forwardOnly is embedded by projections that have no inverse.
type forwardOnly struct {
	name string
}

// Name implements Projection.
func (f forwardOnly) Name() string { return f.name }

// HasInverse implements Projection.
func (f forwardOnly) HasInverse() bool { return false }

// Invert implements Projection.
func (f forwardOnly) Invert(domain.Point) (domain.Point, error) {
	return domain.Point{}, &domain.NoInverseError{Projection: f.name}
}

const halfPi = math.Pi / 2

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// clamp limits v to [-1, 1] so rounding noise cannot push asin or acos
// outside their domain.
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
