package projection

import (
	"fmt"
	"strings"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Compound chains projections. The first stage receives radians, each
// later stage the cartesian output of the previous one. Stage order matters.
//
// Stages can only be appended. A Compound must be fully built before it is
// shared between goroutines.
type Compound struct {
	stages []Projection
}

// NewCompound creates a pipeline from the given stages.
func NewCompound(stages ...Projection) *Compound {
	c := &Compound{}
	for _, s := range stages {
		c.AddProjection(s)
	}
	return c
}

// AddProjection appends a stage. Nested compounds are flattened.
func (c *Compound) AddProjection(p Projection) {
	if p == nil {
		return
	}
	if inner, ok := p.(*Compound); ok {
		c.stages = append(c.stages, inner.stages...)
		return
	}
	c.stages = append(c.stages, p)
}

// Stages returns a copy of the stage list.
func (c *Compound) Stages() []Projection {
	out := make([]Projection, len(c.stages))
	copy(out, c.stages)
	return out
}

// Len returns the number of stages.
func (c *Compound) Len() int {
	return len(c.stages)
}

// Name implements Projection.
func (c *Compound) Name() string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return strings.Join(names, " | ")
}

// Project implements Projection. An empty pipeline is the identity.
func (c *Compound) Project(p domain.Point) domain.Point {
	for _, s := range c.stages {
		p = s.Project(p)
	}
	return p
}

// ProjectPoints converts degrees to radians once and runs every stage.
func (c *Compound) ProjectPoints(points []domain.LonLat) []domain.Point {
	return ProjectPoints(c, points)
}

// HasInverse implements Projection. It is true only if every stage can be
// inverted.
func (c *Compound) HasInverse() bool {
	for _, s := range c.stages {
		if !s.HasInverse() {
			return false
		}
	}
	return true
}

// Invert implements Projection by inverting the stages in reverse order.
func (c *Compound) Invert(p domain.Point) (domain.Point, error) {
	for _, s := range c.stages {
		if !s.HasInverse() {
			return domain.Point{}, &domain.NoInverseError{Projection: s.Name()}
		}
	}
	for i := len(c.stages) - 1; i >= 0; i-- {
		var err error
		p, err = c.stages[i].Invert(p)
		if err != nil {
			return domain.Point{}, fmt.Errorf("stage %d (%s): %w", i, c.stages[i].Name(), err)
		}
	}
	return p, nil
}
