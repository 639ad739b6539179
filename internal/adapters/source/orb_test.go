package source

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/jobrunner/travelmap/internal/domain"
)

func TestShapeFromGeometry(t *testing.T) {
	ring := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 2}}

	tests := []struct {
		name      string
		geom      orb.Geometry
		wantKind  domain.GeometryKind
		wantParts []int
		wantLen   int
	}{
		{"point", orb.Point{13.4, 52.5}, domain.KindPoint, []int{0}, 1},
		{"multipoint", orb.MultiPoint{{1, 1}, {2, 2}}, domain.KindPoint, []int{0, 1}, 2},
		{"linestring", orb.LineString{{0, 0}, {1, 1}, {2, 0}}, domain.KindPolyline, []int{0}, 3},
		{"multilinestring", orb.MultiLineString{{{0, 0}, {1, 1}}, {{5, 5}, {6, 6}, {7, 5}}}, domain.KindPolyline, []int{0, 2}, 5},
		{"polygon with hole", orb.Polygon{ring, hole}, domain.KindPolygon, []int{0, 4}, 8},
		{"multipolygon", orb.MultiPolygon{{ring}, {hole}}, domain.KindPolygon, []int{0, 4}, 8},
		{"bound", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, domain.KindPolygon, []int{0}, 5},
		{"collection", orb.Collection{orb.LineString{}, orb.Polygon{ring}}, domain.KindPolygon, []int{0}, 4},
		{"empty", orb.LineString{}, domain.KindNull, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ShapeFromGeometry(tt.geom, nil)
			if s.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", s.Kind, tt.wantKind)
			}
			assert.Equal(t, tt.wantParts, s.Parts)
			if len(s.Points) != tt.wantLen {
				t.Errorf("len(Points) = %d, want %d", len(s.Points), tt.wantLen)
			}
		})
	}
}

func TestShapeFromGeometryBBox(t *testing.T) {
	s := ShapeFromGeometry(orb.LineString{{-10, 5}, {20, -5}, {0, 30}}, map[string]interface{}{"name": "route"})

	assert.Equal(t, domain.NewBBox(-10, -5, 20, 30), s.BBox)
	assert.Equal(t, "route", s.GetStringProperty("name"))
}
