package projection

import (
	"fmt"
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// GallPeters is the cylindrical equal-area projection with the unit-sphere
// scaling (x, 2 sin y).
type GallPeters struct{}

// NewGallPeters creates a Gall-Peters projection.
func NewGallPeters() *GallPeters {
	return &GallPeters{}
}

// Name implements Projection.
func (GallPeters) Name() string { return "gallpeters" }

// Project implements Projection.
func (GallPeters) Project(p domain.Point) domain.Point {
	return domain.Point{X: p.X, Y: 2 * math.Sin(p.Y)}
}

// HasInverse implements Projection.
func (GallPeters) HasInverse() bool { return true }

// Invert implements Projection. |y| > 2 lies outside the map.
func (GallPeters) Invert(p domain.Point) (domain.Point, error) {
	s := p.Y / 2
	if math.Abs(s) > 1 {
		return domain.Point{}, fmt.Errorf("gallpeters y=%g: %w", p.Y, domain.ErrOutOfDomain)
	}
	return domain.Point{X: p.X, Y: math.Asin(s)}, nil
}

// Albers is the Albers conic equal-area projection.
type Albers struct {
	lambda0 float64
	n       float64
	c       float64
	rho0    float64
}

// NewAlbers creates an Albers projection. All parameters are degrees:
// the two standard parallels, the reference meridian and the reference
// latitude. Parallels symmetric about the equator give a cone constant of
// zero and are rejected.
func NewAlbers(phi1, phi2, lambda0, phi0 float64) (*Albers, error) {
	for _, v := range []struct {
		field string
		deg   float64
	}{{"albers.phi1", phi1}, {"albers.phi2", phi2}, {"albers.phi0", phi0}} {
		if math.IsNaN(v.deg) || v.deg < -90 || v.deg > 90 {
			return nil, &domain.ConfigError{Field: v.field, Message: fmt.Sprintf("latitude %g out of range", v.deg)}
		}
	}

	if err := checkFinite("albers.lambda0", lambda0); err != nil {
		return nil, err
	}

	s1 := math.Sin(radians(phi1))
	c1 := math.Cos(radians(phi1))
	n := (s1 + math.Sin(radians(phi2))) / 2
	if math.Abs(n) < 1e-12 {
		return nil, &domain.ConfigError{Field: "albers.parallels", Message: "standard parallels give a zero cone constant"}
	}

	c := c1*c1 + 2*n*s1
	r0 := c - 2*n*math.Sin(radians(phi0))
	if r0 < 0 {
		return nil, &domain.ConfigError{Field: "albers.phi0", Message: "reference latitude outside the cone"}
	}

	return &Albers{
		lambda0: radians(lambda0),
		n:       n,
		c:       c,
		rho0:    math.Sqrt(r0) / n,
	}, nil
}

// Name implements Projection.
func (a *Albers) Name() string { return "albers" }

// Project implements Projection.
func (a *Albers) Project(p domain.Point) domain.Point {
	theta := a.n * (p.X - a.lambda0)
	rho := math.Sqrt(math.Max(0, a.c-2*a.n*math.Sin(p.Y))) / a.n
	return domain.Point{
		X: rho * math.Sin(theta),
		Y: a.rho0 - rho*math.Cos(theta),
	}
}

// HasInverse implements Projection.
func (a *Albers) HasInverse() bool { return true }

// Invert implements Projection.
func (a *Albers) Invert(p domain.Point) (domain.Point, error) {
	dy := a.rho0 - p.Y
	s := sign(a.n)
	rho := s * math.Hypot(p.X, dy)
	theta := math.Atan2(p.X*s, dy*s)
	phi := math.Asin(clamp((a.c - rho*rho*a.n*a.n) / (2 * a.n)))
	return domain.Point{
		X: a.lambda0 + theta/a.n,
		Y: phi,
	}, nil
}
