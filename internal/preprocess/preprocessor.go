package preprocess

import (
	"github.com/jobrunner/travelmap/internal/domain"
)

// Stats counts what Prepare did with the parts of one or more shapes.
type Stats struct {
	Shapes   int `json:"shapes"`
	Parts    int `json:"parts"`
	Kept     int `json:"kept"`
	Culled   int `json:"culled"`
	Shifted  int `json:"shifted"`
	Excluded int `json:"excluded"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Shapes += o.Shapes
	s.Parts += o.Parts
	s.Kept += o.Kept
	s.Culled += o.Culled
	s.Shifted += o.Shifted
	s.Excluded += o.Excluded
}

// Preprocessor applies the per-part pipeline: split, cull by area, dateline
// fix-up and optional polar exclusion. The zero value keeps every part and
// has empty regions; use New for the world-map defaults.
//
// A Preprocessor holds configuration only and is safe for concurrent use.
type Preprocessor struct {
	AreaThreshold float64
	Dateline      Region
	Polar         Region
	ExcludePolar  bool
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithAreaThreshold sets the culling threshold. Zero disables culling.
func WithAreaThreshold(v float64) Option {
	return func(p *Preprocessor) { p.AreaThreshold = v }
}

// WithDatelineRegion overrides the dateline region.
func WithDatelineRegion(r Region) Option {
	return func(p *Preprocessor) { p.Dateline = r }
}

// WithPolarRegion overrides the polar region.
func WithPolarRegion(r Region) Option {
	return func(p *Preprocessor) { p.Polar = r }
}

// WithExcludePolar drops parts inside the polar region.
func WithExcludePolar(exclude bool) Option {
	return func(p *Preprocessor) { p.ExcludePolar = exclude }
}

// New creates a Preprocessor with the world-map defaults.
func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		AreaThreshold: DefaultAreaThreshold,
		Dateline:      DefaultDatelineRegion,
		Polar:         DefaultPolarRegion,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Keep reports whether a part is large enough to draw.
func (p *Preprocessor) Keep(s domain.Shape) bool {
	return AreaEstimate(s.BBox) >= p.AreaThreshold
}

// InDatelineRegion reports whether the part lies inside the dateline region.
func (p *Preprocessor) InDatelineRegion(s domain.Shape) bool {
	return !p.Dateline.IsZero() && p.Dateline.Contains(s)
}

// InPolarRegion reports whether the part lies inside the polar region.
func (p *Preprocessor) InPolarRegion(s domain.Shape) bool {
	return !p.Polar.IsZero() && p.Polar.Contains(s)
}

// Prepare splits s into parts and returns those that should be projected,
// in source order.
func (p *Preprocessor) Prepare(s domain.Shape) ([]domain.Shape, Stats) {
	parts := SplitParts(s)
	st := Stats{Shapes: 1, Parts: len(parts)}

	out := make([]domain.Shape, 0, len(parts))
	for _, part := range parts {
		if !p.Keep(part) {
			st.Culled++
			continue
		}
		if p.ExcludePolar && p.InPolarRegion(part) {
			st.Excluded++
			continue
		}
		if p.InDatelineRegion(part) {
			part = ShiftLongitude(part, DatelineShift)
			st.Shifted++
		}
		out = append(out, part)
	}
	st.Kept = len(out)
	return out, st
}
