package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
)

func multiPart() domain.Shape {
	pts := []domain.LonLat{
		{Lon: 0, Lat: 0}, {Lon: 10, Lat: 5}, {Lon: 5, Lat: 10},
		{Lon: -20, Lat: -20}, {Lon: -15, Lat: -25},
	}
	return domain.Shape{
		Points:     pts,
		Parts:      []int{0, 3},
		BBox:       domain.BBoxOf(pts),
		Kind:       domain.KindPolygon,
		Properties: map[string]interface{}{"name": "test"},
	}
}

func TestSplitParts(t *testing.T) {
	s := multiPart()
	parts := SplitParts(s)
	require.Len(t, parts, 2)

	if len(parts[0].Points) != 3 || len(parts[1].Points) != 2 {
		t.Fatalf("part sizes = %d, %d, want 3, 2", len(parts[0].Points), len(parts[1].Points))
	}
	assert.Equal(t, domain.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, parts[0].BBox)
	assert.Equal(t, domain.BBox{MinX: -20, MinY: -25, MaxX: -15, MaxY: -20}, parts[1].BBox)

	for i, p := range parts {
		assert.Equal(t, []int{0}, p.Parts, "part %d offsets", i)
		assert.Equal(t, domain.KindPolygon, p.Kind)
		assert.Equal(t, "test", p.GetStringProperty("name"))
	}

	// source is untouched
	assert.Equal(t, []int{0, 3}, s.Parts)
	assert.Len(t, s.Points, 5)
	assert.Equal(t, domain.BBox{MinX: -20, MinY: -25, MaxX: 10, MaxY: 10}, s.BBox)
}

func TestSplitPartsLeadingPoints(t *testing.T) {
	pts := []domain.LonLat{{Lon: 0}, {Lon: 1}, {Lon: 2}, {Lon: 3}, {Lon: 4}, {Lon: 5}}
	s := domain.Shape{Points: pts, Parts: []int{2, 4}, BBox: domain.BBoxOf(pts), Kind: domain.KindPolyline}

	parts := SplitParts(s)
	require.Len(t, parts, 2)
	assert.Equal(t, pts[0:4], parts[0].Points)
	assert.Equal(t, pts[4:6], parts[1].Points)
	assert.Equal(t, domain.BBoxOf(pts[0:4]), parts[0].BBox)
}

func TestSplitPartsCompleteness(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		parts []int
	}{
		{"single", 4, []int{0}},
		{"no offsets", 4, nil},
		{"two", 5, []int{0, 3}},
		{"many", 12, []int{0, 2, 5, 6, 11}},
		{"unsorted", 8, []int{0, 5, 2}},
		{"out of range", 6, []int{0, 4, 99}},
		{"first offset not zero", 6, []int{2, 4}},
		{"repeated offset", 6, []int{0, 3, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := make([]domain.LonLat, tt.n)
			for i := range pts {
				pts[i] = domain.LonLat{Lon: float64(i), Lat: float64(i * i % 7)}
			}
			s := domain.Shape{Points: pts, Parts: tt.parts, BBox: domain.BBoxOf(pts), Kind: domain.KindPolyline}

			var joined []domain.LonLat
			for _, p := range SplitParts(s) {
				if len(p.Points) == 0 {
					t.Fatal("empty part emitted")
				}
				if p.BBox != domain.BBoxOf(p.Points) {
					t.Errorf("part bbox = %v, want %v", p.BBox, domain.BBoxOf(p.Points))
				}
				joined = append(joined, p.Points...)
			}
			assert.Equal(t, pts, joined)
		})
	}
}

func TestSplitPartsEmpty(t *testing.T) {
	if got := SplitParts(domain.Shape{Parts: []int{0}}); len(got) != 0 {
		t.Errorf("SplitParts(empty) = %v, want none", got)
	}
}

func TestAreaEstimate(t *testing.T) {
	large := AreaEstimate(domain.BBox{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10})
	small := AreaEstimate(domain.BBox{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1})
	if large <= small {
		t.Errorf("AreaEstimate large = %g, small = %g, want large > small", large, small)
	}

	d := 20 * math.Pi / 180
	want := d * d * math.Cos(-10*math.Pi/180) / (4 * math.Pi)
	assert.InDelta(t, want, large, 1e-15)

	assert.Equal(t, 0.0, AreaEstimate(domain.BBox{MinX: 3, MinY: 4, MaxX: 3, MaxY: 9}))
}

func TestAreaEstimateMonotonic(t *testing.T) {
	base := domain.BBox{MinX: 10, MinY: 30, MaxX: 12, MaxY: 31}
	prev := AreaEstimate(base)

	for i := 1; i <= 20; i++ {
		wider := base
		wider.MaxX += float64(i) * 0.5
		taller := base
		taller.MaxY += float64(i) * 0.5

		if a := AreaEstimate(wider); a <= prev {
			t.Errorf("widening by %g: %g <= %g", float64(i)*0.5, a, prev)
		}
		if a := AreaEstimate(taller); a <= prev {
			t.Errorf("raising by %g: %g <= %g", float64(i)*0.5, a, prev)
		}
	}
}

func TestRegionBoundaryContainment(t *testing.T) {
	bound := DefaultDatelineRegion.Bound
	shapeWith := func(b domain.BBox) domain.Shape { return domain.Shape{BBox: b} }

	if !DefaultDatelineRegion.Contains(shapeWith(bound)) {
		t.Error("bbox equal to the bound must be inside")
	}

	edges := []struct {
		name string
		bbox domain.BBox
	}{
		{"min x", domain.BBox{MinX: bound.MinX - 0.01, MinY: bound.MinY, MaxX: bound.MaxX, MaxY: bound.MaxY}},
		{"min y", domain.BBox{MinX: bound.MinX, MinY: bound.MinY - 0.01, MaxX: bound.MaxX, MaxY: bound.MaxY}},
		{"max x", domain.BBox{MinX: bound.MinX, MinY: bound.MinY, MaxX: bound.MaxX + 0.01, MaxY: bound.MaxY}},
		{"max y", domain.BBox{MinX: bound.MinX, MinY: bound.MinY, MaxX: bound.MaxX, MaxY: bound.MaxY + 0.01}},
	}
	for _, e := range edges {
		t.Run(e.name, func(t *testing.T) {
			if DefaultDatelineRegion.Contains(shapeWith(e.bbox)) {
				t.Errorf("bbox %v exceeding %s judged inside", e.bbox, e.name)
			}
		})
	}
}

func TestShiftLongitude(t *testing.T) {
	pts := []domain.LonLat{{Lon: -179, Lat: 65}, {Lon: -172, Lat: 66.5}, {Lon: -170, Lat: 65.2}}
	s := domain.NewShape(domain.KindPolygon, pts)

	got := ShiftLongitude(s, DatelineShift)
	want := []domain.LonLat{{Lon: 181, Lat: 65}, {Lon: 188, Lat: 66.5}, {Lon: 190, Lat: 65.2}}
	assert.Equal(t, want, got.Points)
	assert.Equal(t, domain.BBoxOf(want), got.BBox)

	assert.Equal(t, -179.0, s.Points[0].Lon, "source shape modified")
}
