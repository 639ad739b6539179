package source

import (
	"github.com/paulmach/orb"

	"github.com/jobrunner/travelmap/internal/domain"
)

// ShapeFromGeometry flattens an orb geometry into a shape. Every line
// string, ring and polygon ring becomes one part. Collections keep the kind
// of their first non-empty member.
func ShapeFromGeometry(g orb.Geometry, props map[string]interface{}) domain.Shape {
	s := domain.Shape{Properties: props}
	appendGeometry(&s, g)
	if len(s.Points) > 0 {
		s.BBox = domain.BBoxOf(s.Points)
	}
	return s
}

func appendGeometry(s *domain.Shape, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		appendPart(s, domain.KindPoint, []orb.Point{g})
	case orb.MultiPoint:
		for _, p := range g {
			appendPart(s, domain.KindPoint, []orb.Point{p})
		}
	case orb.LineString:
		appendPart(s, domain.KindPolyline, g)
	case orb.MultiLineString:
		for _, ls := range g {
			appendPart(s, domain.KindPolyline, ls)
		}
	case orb.Ring:
		appendPart(s, domain.KindPolygon, g)
	case orb.Polygon:
		for _, r := range g {
			appendPart(s, domain.KindPolygon, r)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				appendPart(s, domain.KindPolygon, r)
			}
		}
	case orb.Bound:
		appendPart(s, domain.KindPolygon, g.ToRing())
	case orb.Collection:
		for _, member := range g {
			appendGeometry(s, member)
		}
	}
}

func appendPart(s *domain.Shape, kind domain.GeometryKind, pts []orb.Point) {
	if len(pts) == 0 {
		return
	}
	if s.Kind == domain.KindNull {
		s.Kind = kind
	}
	s.Parts = append(s.Parts, len(s.Points))
	for _, p := range pts {
		s.Points = append(s.Points, domain.LonLat{Lon: p.Lon(), Lat: p.Lat()})
	}
}
