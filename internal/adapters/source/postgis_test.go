package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
)

func TestParsePostGISDSN(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		wantDSN   string
		wantTable string
		wantGeom  string
		wantQuery string
	}{
		{
			name:      "defaults",
			dsn:       "postgres://gis@localhost/world?table=countries",
			wantDSN:   "postgres://gis@localhost/world",
			wantTable: "countries",
			wantGeom:  "geom",
			wantQuery: `SELECT ST_AsBinary(t."geom") AS travelmap_geometry, t.* FROM "countries" t`,
		},
		{
			name:      "schema and geometry column",
			dsn:       "postgres://gis@localhost/world?sslmode=disable&table=natural_earth.land&geometry=wkb_geometry",
			wantDSN:   "postgres://gis@localhost/world?sslmode=disable",
			wantTable: "natural_earth.land",
			wantGeom:  "wkb_geometry",
			wantQuery: `SELECT ST_AsBinary(t."wkb_geometry") AS travelmap_geometry, t.* FROM "natural_earth"."land" t`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePostGISDSN(tt.dsn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDSN, got.DSN)
			assert.Equal(t, tt.wantTable, got.Table)
			assert.Equal(t, tt.wantGeom, got.GeometryColumn)
			assert.Equal(t, tt.wantQuery, got.Query())
		})
	}
}

func TestParsePostGISDSNMissingTable(t *testing.T) {
	_, err := ParsePostGISDSN("postgres://gis@localhost/world")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ParsePostGISDSN() error = %v, want %v", err, domain.ErrInvalidInput)
	}
}

func TestPostGISName(t *testing.T) {
	p := &PostGIS{target: PostGISTarget{Table: "natural_earth.land"}}
	if got := p.Name(); got != "land" {
		t.Errorf("Name() = %q, want %q", got, "land")
	}
}
