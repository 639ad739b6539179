package projection

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

const (
	eckert4Cx = 0.42223820031577120149
	eckert4Cy = 1.32650042817700232218
	eckert4Cp = 2 + halfPi
)

// poleEpsilon is the distance from a pole below which the auxiliary angle
// is taken to be the pole itself.
const poleEpsilon = 1e-12

// EckertIV is the equal-area pseudocylindrical projection with elliptical
// meridians and a flat pole line.
type EckertIV struct {
	solver Solver
}

// NewEckertIV creates an Eckert IV projection.
func NewEckertIV(opts ...Option) *EckertIV {
	return &EckertIV{solver: applyOptions(opts).solver}
}

// Name implements Projection.
func (e *EckertIV) Name() string { return "eckert4" }

// theta solves θ + sinθ(cosθ + 2) = (2 + π/2) sinφ.
func (e *EckertIV) theta(phi float64) float64 {
	if math.Abs(math.Abs(phi)-halfPi) < poleEpsilon {
		return math.Copysign(halfPi, phi)
	}
	k := eckert4Cp * math.Sin(phi)
	t, _ := e.solver.Solve(e.Name(), phi/2, func(t float64) (float64, float64) {
		s, c := math.Sin(t), math.Cos(t)
		return t + s*(c+2) - k, 2 * c * (1 + c)
	})
	return t
}

// Project implements Projection.
func (e *EckertIV) Project(p domain.Point) domain.Point {
	t := e.theta(p.Y)
	return domain.Point{
		X: eckert4Cx * p.X * (1 + math.Cos(t)),
		Y: eckert4Cy * math.Sin(t),
	}
}

// HasInverse implements Projection.
func (e *EckertIV) HasInverse() bool { return true }

// Invert implements Projection. The auxiliary angle follows directly from y,
// so the inverse is closed form.
func (e *EckertIV) Invert(p domain.Point) (domain.Point, error) {
	t := math.Asin(clamp(p.Y / eckert4Cy))
	c := math.Cos(t)
	phi := math.Asin(clamp((t + math.Sin(t)*(c+2)) / eckert4Cp))
	return domain.Point{
		X: p.X / (eckert4Cx * (1 + c)),
		Y: phi,
	}, nil
}

// Mollweide is the equal-area pseudocylindrical projection with elliptical
// meridians meeting at the poles.
type Mollweide struct {
	solver Solver
}

// NewMollweide creates a Mollweide projection.
func NewMollweide(opts ...Option) *Mollweide {
	return &Mollweide{solver: applyOptions(opts).solver}
}

// Name implements Projection.
func (m *Mollweide) Name() string { return "mollweide" }

// theta solves 2θ + sin2θ = π sinφ.
func (m *Mollweide) theta(phi float64) float64 {
	if math.Abs(math.Abs(phi)-halfPi) < poleEpsilon {
		return math.Copysign(halfPi, phi)
	}
	k := math.Pi * math.Sin(phi)
	t, _ := m.solver.Solve(m.Name(), phi, func(t float64) (float64, float64) {
		return 2*t + math.Sin(2*t) - k, 2 + 2*math.Cos(2*t)
	})
	return t
}

// Project implements Projection.
func (m *Mollweide) Project(p domain.Point) domain.Point {
	t := m.theta(p.Y)
	return domain.Point{
		X: 2 / math.Pi * p.X * math.Cos(t),
		Y: math.Sin(t),
	}
}

// HasInverse implements Projection.
func (m *Mollweide) HasInverse() bool { return true }

// Invert implements Projection. At the poles every longitude maps to x = 0,
// so longitude 0 is returned there.
func (m *Mollweide) Invert(p domain.Point) (domain.Point, error) {
	if math.Abs(p.Y) > 1 {
		return domain.Point{}, domain.ErrOutOfDomain
	}
	t := math.Asin(p.Y)
	phi := math.Asin(clamp((2*t + math.Sin(2*t)) / math.Pi))
	c := math.Cos(t)
	if c < poleEpsilon {
		return domain.Point{X: 0, Y: phi}, nil
	}
	return domain.Point{X: math.Pi * p.X / (2 * c), Y: phi}, nil
}
