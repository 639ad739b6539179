package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobrunner/travelmap/internal/domain"
)

func square(lon, lat, size float64) []domain.LonLat {
	return []domain.LonLat{
		{Lon: lon, Lat: lat},
		{Lon: lon + size, Lat: lat},
		{Lon: lon + size, Lat: lat + size},
		{Lon: lon, Lat: lat + size},
		{Lon: lon, Lat: lat},
	}
}

func shapeOf(parts ...[]domain.LonLat) domain.Shape {
	var pts []domain.LonLat
	var offsets []int
	for _, p := range parts {
		offsets = append(offsets, len(pts))
		pts = append(pts, p...)
	}
	return domain.Shape{Points: pts, Parts: offsets, BBox: domain.BBoxOf(pts), Kind: domain.KindPolygon}
}

func TestPrepare(t *testing.T) {
	continent := square(10, 40, 20)
	islet := square(50, 10, 0.01)
	naukan := square(-175, 65, 3)
	antarctic := square(-60, -80, 15)

	tests := []struct {
		name      string
		opts      []Option
		wantParts int
		want      Stats
	}{
		{
			name:      "defaults",
			wantParts: 3,
			want:      Stats{Shapes: 1, Parts: 4, Kept: 3, Culled: 1, Shifted: 1},
		},
		{
			name:      "exclude polar",
			opts:      []Option{WithExcludePolar(true)},
			wantParts: 2,
			want:      Stats{Shapes: 1, Parts: 4, Kept: 2, Culled: 1, Shifted: 1, Excluded: 1},
		},
		{
			name:      "no culling",
			opts:      []Option{WithAreaThreshold(0)},
			wantParts: 4,
			want:      Stats{Shapes: 1, Parts: 4, Kept: 4, Shifted: 1},
		},
		{
			name:      "no dateline region",
			opts:      []Option{WithDatelineRegion(Region{})},
			wantParts: 3,
			want:      Stats{Shapes: 1, Parts: 4, Kept: 3, Culled: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.opts...)
			got, st := p.Prepare(shapeOf(continent, islet, naukan, antarctic))
			assert.Len(t, got, tt.wantParts)
			assert.Equal(t, tt.want, st)
		})
	}
}

func TestPrepareKeepsOrderAndShifts(t *testing.T) {
	naukan := square(-175, 65, 3)
	continent := square(10, 40, 20)

	got, _ := New().Prepare(shapeOf(naukan, continent))
	if len(got) != 2 {
		t.Fatalf("Prepare() returned %d parts, want 2", len(got))
	}
	assert.Equal(t, 185.0, got[0].Points[0].Lon)
	assert.Equal(t, 185.0, got[0].BBox.MinX)
	assert.Equal(t, continent, got[1].Points)
}

func TestPredicates(t *testing.T) {
	p := New()
	tests := []struct {
		name         string
		pts          []domain.LonLat
		wantDateline bool
		wantPolar    bool
		wantKeep     bool
	}{
		{"naukan", square(-175, 65, 3), true, false, true},
		{"antarctica", []domain.LonLat{{Lon: -180, Lat: -90}, {Lon: 180, Lat: -62}, {Lon: 0, Lat: -70}}, false, true, false},
		{"europe", square(0, 40, 20), false, false, true},
		{"speck", square(0, 0, 0.05), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.NewShape(domain.KindPolygon, tt.pts)
			if got := p.InDatelineRegion(s); got != tt.wantDateline {
				t.Errorf("InDatelineRegion() = %v, want %v", got, tt.wantDateline)
			}
			if got := p.InPolarRegion(s); got != tt.wantPolar {
				t.Errorf("InPolarRegion() = %v, want %v", got, tt.wantPolar)
			}
			if got := p.Keep(s); got != tt.wantKeep {
				t.Errorf("Keep() = %v, want %v", got, tt.wantKeep)
			}
		})
	}
}

func TestStatsAdd(t *testing.T) {
	var total Stats
	total.Add(Stats{Shapes: 1, Parts: 3, Kept: 2, Culled: 1})
	total.Add(Stats{Shapes: 1, Parts: 1, Kept: 1, Shifted: 1})
	assert.Equal(t, Stats{Shapes: 2, Parts: 4, Kept: 3, Culled: 1, Shifted: 1}, total)
}

func TestZeroPreprocessorKeepsEverything(t *testing.T) {
	var p Preprocessor
	got, st := p.Prepare(shapeOf(square(0, 0, 0.001), square(-175, 65, 3)))
	assert.Len(t, got, 2)
	assert.Equal(t, 0, st.Shifted)
}
