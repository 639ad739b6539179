package projection

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// polynomial is a pseudocylindrical projection of the form
// x = λ·xScale(φ), y = yOf(φ). Invertible variants also provide dyOf and
// recover φ from y with Newton-Raphson.
type polynomial struct {
	name   string
	xScale func(phi float64) float64
	yOf    func(phi float64) float64
	dyOf   func(phi float64) float64
	solver Solver
	yMax   float64
}

func newPolynomial(name string, xScale, yOf, dyOf func(float64) float64, opts []Option) *polynomial {
	p := &polynomial{
		name:   name,
		xScale: xScale,
		yOf:    yOf,
		dyOf:   dyOf,
		solver: applyOptions(opts).solver,
	}
	p.yMax = yOf(halfPi)
	return p
}

// Name implements Projection.
func (p *polynomial) Name() string { return p.name }

// Project implements Projection.
func (p *polynomial) Project(pt domain.Point) domain.Point {
	return domain.Point{X: pt.X * p.xScale(pt.Y), Y: p.yOf(pt.Y)}
}

// HasInverse implements Projection.
func (p *polynomial) HasInverse() bool { return p.dyOf != nil }

// Invert implements Projection. y is clamped to the height of the pole line
// before solving so the iteration starts inside the polynomial's range.
func (p *polynomial) Invert(pt domain.Point) (domain.Point, error) {
	if p.dyOf == nil {
		return domain.Point{}, &domain.NoInverseError{Projection: p.name}
	}
	y := math.Max(-p.yMax, math.Min(p.yMax, pt.Y))
	phi, cerr := p.solver.Solve(p.name, y, func(phi float64) (float64, float64) {
		return p.yOf(phi) - y, p.dyOf(phi)
	})
	out := domain.Point{X: pt.X / p.xScale(phi), Y: phi}
	return out, p.solver.inverseErr(cerr)
}

// NaturalEarth is the Natural Earth compromise projection (Šavrič et al.).
type NaturalEarth struct {
	*polynomial
}

// NewNaturalEarth creates a Natural Earth projection.
func NewNaturalEarth(opts ...Option) *NaturalEarth {
	return &NaturalEarth{newPolynomial("naturalearth",
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			return 0.8707 - 0.131979*phi2 + phi4*(-0.013791+phi4*(0.003971*phi2-0.001529*phi4))
		},
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			return phi * (1.007226 + phi2*(0.015085+phi4*(-0.044475+0.028874*phi2-0.005916*phi4)))
		},
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			return 1.007226 + phi2*(0.045255+phi4*(-0.311325+0.259866*phi2-0.065076*phi4))
		},
		opts,
	)}
}

// NaturalEarth2 is the Natural Earth II compromise projection.
type NaturalEarth2 struct {
	*polynomial
}

// NewNaturalEarth2 creates a Natural Earth II projection.
func NewNaturalEarth2(opts ...Option) *NaturalEarth2 {
	return &NaturalEarth2{newPolynomial("naturalearth2",
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			phi6 := phi2 * phi4
			return 0.84719 - 0.13063*phi2 + phi6*phi6*(-0.04515+0.05494*phi2-0.02326*phi4+0.00331*phi6)
		},
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			return phi * (1.01183 + phi4*phi4*(-0.02625+0.01926*phi2-0.00396*phi4))
		},
		func(phi float64) float64 {
			phi2 := phi * phi
			phi4 := phi2 * phi2
			return 1.01183 + phi4*phi4*(9*-0.02625+11*0.01926*phi2+13*-0.00396*phi4)
		},
		opts,
	)}
}

const (
	pattersonK1 = 1.0148
	pattersonK2 = 0.23185
	pattersonK3 = -0.14499
	pattersonK4 = 0.02406
)

// Patterson is the Patterson cylindrical compromise projection. Only the
// forward direction is provided.
type Patterson struct {
	forwardOnly
}

// NewPatterson creates a Patterson projection.
func NewPatterson() *Patterson {
	return &Patterson{forwardOnly{name: "patterson"}}
}

// Project implements Projection.
func (*Patterson) Project(p domain.Point) domain.Point {
	phi2 := p.Y * p.Y
	return domain.Point{
		X: p.X,
		Y: p.Y * (pattersonK1 + phi2*phi2*(pattersonK2+phi2*(pattersonK3+pattersonK4*phi2))),
	}
}

// Robinson polynomial coefficients, fitted to Robinson's table at 0°, 45°
// and 90° and scaled by 0.8487 and 1.3523.
const (
	robinsonA0 = 0.8487
	robinsonA2 = -0.13678
	robinsonA4 = -0.0097787
	robinsonA1 = 0.96077
	robinsonA3 = 0.010130
	robinsonA5 = -0.020509
)

// Robinson is a polynomial approximation of the Robinson projection. Only
// the forward direction is provided.
type Robinson struct {
	forwardOnly
}

// NewRobinson creates a Robinson projection.
func NewRobinson() *Robinson {
	return &Robinson{forwardOnly{name: "robinson"}}
}

// Project implements Projection.
func (*Robinson) Project(p domain.Point) domain.Point {
	phi2 := p.Y * p.Y
	return domain.Point{
		X: p.X * (robinsonA0 + phi2*(robinsonA2+phi2*robinsonA4)),
		Y: p.Y * (robinsonA1 + phi2*(robinsonA3+phi2*robinsonA5)),
	}
}
