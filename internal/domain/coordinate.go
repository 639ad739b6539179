// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// LonLat is a geographic position in degrees as supplied by a shape source.
//
// It is deliberately a different type from Point: projections only accept
// Point, so degree values cannot reach a projection without going through
// Radians.
type LonLat struct {
	Lon float64 // Longitude in degrees
	Lat float64 // Latitude in degrees
}

// Radians converts the position to radians. This is the only degree to
// radian conversion in the projection path.
func (ll LonLat) Radians() Point {
	return Point{X: ll.Lon * math.Pi / 180, Y: ll.Lat * math.Pi / 180}
}

// Validate checks that the position lies on the globe.
func (ll LonLat) Validate() error {
	if ll.Lon < -180 || ll.Lon > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      ll.Lon,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	if ll.Lat < -90 || ll.Lat > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      ll.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	return nil
}

// String returns a string representation of the position.
func (ll LonLat) String() string {
	return fmt.Sprintf("POINT(%f %f)", ll.Lon, ll.Lat)
}

// Point is a planar position. It holds radians (longitude, latitude) when it
// enters the first projection stage and dimensionless cartesian values after.
type Point struct {
	X float64
	Y float64
}

// Degrees converts a radian point back to a geographic position.
func (p Point) Degrees() LonLat {
	return LonLat{Lon: p.X * 180 / math.Pi, Lat: p.Y * 180 / math.Pi}
}

// IsFinite reports whether both components are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// BBox is an axis-aligned bounding box [MinX, MinY, MaxX, MaxY]. For shapes
// the values are degrees.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBBox builds a box from the four edges in [minX, minY, maxX, maxY] order.
func NewBBox(minX, minY, maxX, maxY float64) BBox {
	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// BBoxOf returns the tight bounding box of the given positions.
// An empty slice yields the zero box.
func BBoxOf(points []LonLat) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	b := BBox{MinX: points[0].Lon, MinY: points[0].Lat, MaxX: points[0].Lon, MaxY: points[0].Lat}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b
}

// Extend returns the box grown to include p.
func (b BBox) Extend(p LonLat) BBox {
	b.MinX = math.Min(b.MinX, p.Lon)
	b.MinY = math.Min(b.MinY, p.Lat)
	b.MaxX = math.Max(b.MaxX, p.Lon)
	b.MaxY = math.Max(b.MaxY, p.Lat)
	return b
}

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Within reports whether b lies inside bound. All four edges are compared
// inclusively, so a box equal to its bound is inside.
func (b BBox) Within(bound BBox) bool {
	return b.MinX >= bound.MinX && b.MinY >= bound.MinY &&
		b.MaxX <= bound.MaxX && b.MaxY <= bound.MaxY
}

// Contains checks if a position is within the box.
func (b BBox) Contains(p LonLat) bool {
	return p.Lon >= b.MinX && p.Lon <= b.MaxX && p.Lat >= b.MinY && p.Lat <= b.MaxY
}

// Intersects reports whether the two boxes share at least one point.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// IsValid checks if the box has valid dimensions.
func (b BBox) IsValid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Width returns the width of the box.
func (b BBox) Width() float64 {
	return math.Abs(b.MaxX - b.MinX)
}

// Height returns the height of the box.
func (b BBox) Height() float64 {
	return math.Abs(b.MaxY - b.MinY)
}

// Center returns the center of the box.
func (b BBox) Center() LonLat {
	return LonLat{Lon: (b.MinX + b.MaxX) / 2, Lat: (b.MinY + b.MaxY) / 2}
}

// Array returns the box as [minX, minY, maxX, maxY].
func (b BBox) Array() [4]float64 {
	return [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}
