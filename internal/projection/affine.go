package projection

import (
	"fmt"
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Resize scales both axes.
type Resize struct {
	sx, sy float64
}

// NewResize creates a Resize stage. sy defaults to sx. A zero factor has no
// inverse and is rejected.
func NewResize(sx float64, sy ...float64) (*Resize, error) {
	y := sx
	if len(sy) > 0 {
		y = sy[0]
	}
	if err := checkFinite("resize", sx, y); err != nil {
		return nil, err
	}
	if sx == 0 || y == 0 {
		return nil, &domain.ConfigError{Field: "resize", Message: "scale factor must not be zero"}
	}
	return &Resize{sx: sx, sy: y}, nil
}

// Name implements Projection.
func (r *Resize) Name() string { return "resize" }

// Project implements Projection.
func (r *Resize) Project(p domain.Point) domain.Point {
	return domain.Point{X: p.X * r.sx, Y: p.Y * r.sy}
}

// HasInverse implements Projection.
func (r *Resize) HasInverse() bool { return true }

// Invert implements Projection.
func (r *Resize) Invert(p domain.Point) (domain.Point, error) {
	return domain.Point{X: p.X / r.sx, Y: p.Y / r.sy}, nil
}

// Rotate turns the plane counterclockwise around the origin.
type Rotate struct {
	cos, sin float64
}

// NewRotate creates a Rotate stage from an angle in degrees.
func NewRotate(degrees float64) (*Rotate, error) {
	if err := checkFinite("rotate", degrees); err != nil {
		return nil, err
	}
	a := radians(degrees)
	return &Rotate{cos: math.Cos(a), sin: math.Sin(a)}, nil
}

// Name implements Projection.
func (r *Rotate) Name() string { return "rotate" }

// Project implements Projection.
func (r *Rotate) Project(p domain.Point) domain.Point {
	return domain.Point{
		X: p.X*r.cos - p.Y*r.sin,
		Y: p.X*r.sin + p.Y*r.cos,
	}
}

// HasInverse implements Projection.
func (r *Rotate) HasInverse() bool { return true }

// Invert implements Projection.
func (r *Rotate) Invert(p domain.Point) (domain.Point, error) {
	return domain.Point{
		X: p.X*r.cos + p.Y*r.sin,
		Y: -p.X*r.sin + p.Y*r.cos,
	}, nil
}

// Translate shifts the plane.
type Translate struct {
	dx, dy float64
}

// NewTranslate creates a Translate stage. dy defaults to dx.
func NewTranslate(dx float64, dy ...float64) (*Translate, error) {
	y := dx
	if len(dy) > 0 {
		y = dy[0]
	}
	if err := checkFinite("translate", dx, y); err != nil {
		return nil, err
	}
	return &Translate{dx: dx, dy: y}, nil
}

// checkFinite rejects NaN and infinite construction parameters. They would
// turn every projected point into NaN.
func checkFinite(field string, vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.ConfigError{Field: field, Message: fmt.Sprintf("parameter %g is not finite", v)}
		}
	}
	return nil
}

// Name implements Projection.
func (t *Translate) Name() string { return "translate" }

// Project implements Projection.
func (t *Translate) Project(p domain.Point) domain.Point {
	return domain.Point{X: p.X + t.dx, Y: p.Y + t.dy}
}

// HasInverse implements Projection.
func (t *Translate) HasInverse() bool { return true }

// Invert implements Projection.
func (t *Translate) Invert(p domain.Point) (domain.Point, error) {
	return domain.Point{X: p.X - t.dx, Y: p.Y - t.dy}, nil
}
