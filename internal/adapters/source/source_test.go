package source

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func collect(t *testing.T, src output.ShapeSource) []domain.Shape {
	t.Helper()
	var shapes []domain.Shape
	for s, err := range src.Shapes(context.Background()) {
		require.NoError(t, err)
		shapes = append(shapes, s)
	}
	return shapes
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/countries.shp", FormatShapefile},
		{"/data/COUNTRIES.SHP", FormatShapefile},
		{"/data/ne_110m_land.zip", FormatShapefile},
		{"rivers.geojson", FormatGeoJSON},
		{"rivers.json", FormatGeoJSON},
		{"world.gpkg", FormatGeoPackage},
		{"postgres://localhost/gis?table=countries", FormatPostGIS},
		{"postgresql://localhost/gis?table=countries", FormatPostGIS},
		{"countries.dbf", ""},
		{"README.md", ""},
	}

	opener := NewOpener(testLogger())
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FormatOf(tt.path); got != tt.want {
				t.Errorf("FormatOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if got := opener.Supports(tt.path); got != (tt.want != "") {
				t.Errorf("Supports(%q) = %v, want %v", tt.path, got, tt.want != "")
			}
		})
	}
}

func TestOpenerUnsupported(t *testing.T) {
	_, err := NewOpener(testLogger()).Open(context.Background(), "notes.txt")
	if !errors.Is(err, domain.ErrUnsupportedSource) {
		t.Errorf("Open() error = %v, want %v", err, domain.ErrUnsupportedSource)
	}
}

func TestOpenerMissingFile(t *testing.T) {
	_, err := NewOpener(testLogger()).Open(context.Background(), filepath.Join(t.TempDir(), "missing.geojson"))

	var srcErr *domain.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadLicense(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "countries.geojson")
	sidecar := "name: ODbL\nurl: https://opendatacommons.org/licenses/odbl/\nattribution: © OpenStreetMap contributors\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.license.yaml"), []byte(sidecar), 0o600))

	got := readLicense(path)
	assert.Equal(t, "ODbL", got.Name)
	assert.Equal(t, "© OpenStreetMap contributors", got.String())

	missing := readLicense(filepath.Join(dir, "rivers.shp"))
	assert.True(t, missing.IsEmpty())
}

func TestLayerName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/countries.shp", "countries"},
		{"ne_110m_land.shp.zip", "ne_110m_land"},
		{"world.gpkg", "world"},
	}
	for _, tt := range tests {
		if got := layerName(tt.path); got != tt.want {
			t.Errorf("layerName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
