package domain

import "strings"

// GeometryKind classifies the geometry carried by a shape.
type GeometryKind int

// Geometry kinds known to the map driver.
const (
	KindNull GeometryKind = iota
	KindPoint
	KindPolyline
	KindPolygon
)

// String returns the name of the kind.
func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindPolyline:
		return "polyline"
	case KindPolygon:
		return "polygon"
	default:
		return "null"
	}
}

// ParseGeometryKind maps common geometry type names (WKT, GeoJSON and
// GeoPackage spellings) onto a kind.
func ParseGeometryKind(name string) GeometryKind {
	switch strings.ToUpper(name) {
	case "POINT", "MULTIPOINT":
		return KindPoint
	case "LINESTRING", "MULTILINESTRING", "POLYLINE":
		return KindPolyline
	case "POLYGON", "MULTIPOLYGON":
		return KindPolygon
	default:
		return KindNull
	}
}

// Shape is a geographic feature as delivered by a shape source: a flat
// sequence of positions split into parts by ascending start offsets.
//
// Shapes are treated as immutable values. Preprocessing builds new shapes
// and never edits the one a source produced.
type Shape struct {
	Points     []LonLat               // Flat point sequence in degrees
	Parts      []int                  // Start offset of each part into Points
	BBox       BBox                   // Bounding box of Points
	Kind       GeometryKind           // Geometry kind
	Properties map[string]interface{} // Attribute data
}

// NewShape builds a single-part shape with a computed bounding box.
func NewShape(kind GeometryKind, points []LonLat) Shape {
	return Shape{
		Points: points,
		Parts:  []int{0},
		BBox:   BBoxOf(points),
		Kind:   kind,
	}
}

// PartCount returns the number of parts. A shape without explicit
// offsets but with points counts as one part.
func (s *Shape) PartCount() int {
	if len(s.Parts) == 0 && len(s.Points) > 0 {
		return 1
	}
	return len(s.Parts)
}

// IsSimple reports whether the shape has exactly one part.
func (s *Shape) IsSimple() bool {
	return s.PartCount() == 1
}

// GetProperty returns a property value by key.
func (s *Shape) GetProperty(key string) (interface{}, bool) {
	if s.Properties == nil {
		return nil, false
	}
	v, ok := s.Properties[key]
	return v, ok
}

// GetStringProperty returns a property as string.
func (s *Shape) GetStringProperty(key string) string {
	if v, ok := s.GetProperty(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}
