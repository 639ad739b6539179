package projection

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// vdgEpsilon bounds the singular cases of the Van der Grinten formulas.
const vdgEpsilon = 1e-10

// VanDerGrinten is the Van der Grinten I projection, which maps the whole
// sphere into a circle.
type VanDerGrinten struct{}

// NewVanDerGrinten creates a Van der Grinten projection.
func NewVanDerGrinten() *VanDerGrinten {
	return &VanDerGrinten{}
}

// Name implements Projection.
func (VanDerGrinten) Name() string { return "vandergrinten" }

// Project implements Projection.
//
// The equator maps to itself. The central meridian and the poles lie on the
// y axis. Everything else goes through the A/G/P/Q construction.
func (VanDerGrinten) Project(p domain.Point) domain.Point {
	lambda, phi := p.X, p.Y
	if math.Abs(phi) < vdgEpsilon {
		return domain.Point{X: lambda, Y: 0}
	}

	sinTheta := math.Min(1, math.Abs(phi/halfPi))
	theta := math.Asin(sinTheta)
	if math.Abs(lambda) < vdgEpsilon || math.Abs(math.Abs(phi)-halfPi) < vdgEpsilon {
		return domain.Point{X: 0, Y: sign(phi) * math.Pi * math.Tan(theta/2)}
	}

	cosTheta := math.Cos(theta)
	a := math.Abs(math.Pi/lambda-lambda/math.Pi) / 2
	a2 := a * a
	g := cosTheta / (sinTheta + cosTheta - 1)
	pp := g * (2/sinTheta - 1)
	p2 := pp * pp
	p2a2 := p2 + a2
	gp2 := g - p2
	q := a2 + g

	x := math.Pi * (a*gp2 + math.Sqrt(math.Max(0, a2*gp2*gp2-p2a2*(g*g-p2)))) / p2a2
	y := math.Pi * (pp*q - a*math.Sqrt(math.Max(0, (a2+1)*p2a2-q*q))) / p2a2
	return domain.Point{X: sign(lambda) * x, Y: sign(phi) * y}
}

// HasInverse implements Projection.
func (VanDerGrinten) HasInverse() bool { return true }

// Invert implements Projection. On the central meridian y = π·tan(θ/2)
// with sin θ = 2φ/π, which inverts in closed form. Elsewhere latitude comes
// from the trigonometric solution of a cubic; the sign of y is mirrored
// back at the end.
func (VanDerGrinten) Invert(p domain.Point) (domain.Point, error) {
	if math.Abs(p.Y) < vdgEpsilon {
		return domain.Point{X: p.X, Y: 0}, nil
	}
	if math.Abs(p.X) < vdgEpsilon {
		return domain.Point{X: 0, Y: halfPi * math.Sin(2*math.Atan(p.Y/math.Pi))}, nil
	}

	x := p.X / math.Pi
	y := p.Y / math.Pi
	x2 := x * x
	y2 := y * y
	x2y2 := x2 + y2
	z := x2y2 * x2y2

	c1 := -math.Abs(y) * (1 + x2y2)
	c2 := c1 - 2*y2 + x2
	c3 := -2*c1 + 1 + 2*y2 + z
	d := y2/c3 + (2*c2*c2*c2/(c3*c3*c3)-9*c1*c2/(c3*c3))/27
	a1 := (c1 - c2*c2/(3*c3)) / c3
	m1 := 2 * math.Sqrt(-a1/3)
	theta1 := math.Acos(clamp(3*d/(a1*m1))) / 3
	phi := sign(p.Y) * math.Pi * (-m1*math.Cos(theta1+math.Pi/3) - c2/(3*c3))

	lambda := math.Pi * (x2y2 - 1 + math.Sqrt(1+2*(x2-y2)+z)) / (2 * x)
	return domain.Point{X: lambda, Y: phi}, nil
}
