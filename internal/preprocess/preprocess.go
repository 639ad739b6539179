// Package preprocess prepares geographic shapes for projection: it splits
// multi-part shapes, culls parts too small to be visible, moves the
// dateline region to the other side of the map and flags polar parts.
//
// Every function returns new shapes. The shape handed in is never modified.
package preprocess

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// DefaultAreaThreshold is the culling threshold used for world maps, as a
// fraction of the sphere surface.
const DefaultAreaThreshold = 3e-6

// DatelineShift is the longitude offset applied to parts in the dateline
// region.
const DatelineShift = 360.0

const sphereArea = 4 * math.Pi

// Region is a named geographic bound used for containment tests.
type Region struct {
	Name  string      `json:"name"`
	Bound domain.BBox `json:"bound"`
}

// IsZero reports whether the region is unset.
func (r Region) IsZero() bool {
	return r == Region{}
}

// Contains reports whether the shape's bounding box lies inside the region.
func (r Region) Contains(s domain.Shape) bool {
	return s.BBox.Within(r.Bound)
}

// Default regions. The dateline region covers the Chukotka tip around
// Naukan that lies west of the antimeridian.
var (
	DefaultDatelineRegion = Region{
		Name:  "naukan",
		Bound: domain.BBox{MinX: -180.1, MinY: 64, MaxX: -169.6, MaxY: 89},
	}
	DefaultPolarRegion = Region{
		Name:  "antarctica",
		Bound: domain.BBox{MinX: -180.1, MinY: -90, MaxX: 180.1, MaxY: -60},
	}
)

// SplitParts returns one single-part shape per part of s, each with the
// bounding box of exactly its own points. Offsets outside the point range
// or out of order are clamped, empty parts are dropped, and a shape
// without points yields nothing. The first part always starts at point 0:
// when the first offset is greater, the leading points join the first
// part instead of being lost, so Parts {2, 4} over six points gives the
// parts [0, 4) and [4, 6).
func SplitParts(s domain.Shape) []domain.Shape {
	n := len(s.Points)
	if n == 0 {
		return nil
	}
	offsets := s.Parts
	if len(offsets) == 0 {
		offsets = []int{0}
	}

	starts := make([]int, len(offsets))
	prev := 0
	for i, off := range offsets {
		off = max(prev, min(off, n))
		starts[i] = off
		prev = off
	}

	out := make([]domain.Shape, 0, len(starts))
	for i, begin := range starts {
		end := n
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if i == 0 {
			begin = 0 // leading points belong to the first part
		}
		if begin >= end {
			continue
		}
		pts := s.Points[begin:end:end]
		out = append(out, domain.Shape{
			Points:     pts,
			Parts:      []int{0},
			BBox:       domain.BBoxOf(pts),
			Kind:       s.Kind,
			Properties: s.Properties,
		})
	}
	return out
}

// AreaEstimate approximates the fraction of the sphere covered by a
// bounding box in degrees. The cosine correction uses the southern edge.
// Boxes crossing the antimeridian give meaningless values.
func AreaEstimate(b domain.BBox) float64 {
	dx := (b.MaxX - b.MinX) * math.Pi / 180
	dy := (b.MaxY - b.MinY) * math.Pi / 180
	latAdj := math.Cos(b.MinY * math.Pi / 180)
	return dx * dy * latAdj / sphereArea
}

// ShiftLongitude returns a copy of s with delta added to every longitude.
func ShiftLongitude(s domain.Shape, delta float64) domain.Shape {
	pts := make([]domain.LonLat, len(s.Points))
	for i, p := range s.Points {
		pts[i] = domain.LonLat{Lon: p.Lon + delta, Lat: p.Lat}
	}
	parts := make([]int, len(s.Parts))
	copy(parts, s.Parts)

	bbox := s.BBox
	if len(pts) > 0 {
		bbox = domain.BBox{MinX: s.BBox.MinX + delta, MinY: s.BBox.MinY, MaxX: s.BBox.MaxX + delta, MaxY: s.BBox.MaxY}
	}
	return domain.Shape{
		Points:     pts,
		Parts:      parts,
		BBox:       bbox,
		Kind:       s.Kind,
		Properties: s.Properties,
	}
}
