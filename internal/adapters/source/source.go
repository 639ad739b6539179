// Package source provides the shape sources: ESRI shapefiles (plain or
// zipped), GeoJSON, GeoPackage and PostGIS tables.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// Format names reported in output.SourceInfo.
const (
	FormatShapefile  = "shapefile"
	FormatGeoJSON    = "geojson"
	FormatGeoPackage = "geopackage"
	FormatPostGIS    = "postgis"
)

// Opener implements output.SourceOpener by dispatching on the file
// extension or the DSN scheme.
type Opener struct {
	logger *slog.Logger
}

// NewOpener creates a source opener.
func NewOpener(logger *slog.Logger) *Opener {
	return &Opener{logger: logger}
}

// FormatOf returns the source format for a path, or "" if none applies.
func FormatOf(path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return FormatPostGIS
	}
	switch filepath.Ext(lower) {
	case ".shp", ".zip":
		return FormatShapefile
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".gpkg":
		return FormatGeoPackage
	}
	return ""
}

// Supports reports whether path names a readable source.
func (o *Opener) Supports(path string) bool {
	return FormatOf(path) != ""
}

// Open opens the source at path.
func (o *Opener) Open(ctx context.Context, path string) (output.ShapeSource, error) {
	var (
		src output.ShapeSource
		err error
	)
	switch FormatOf(path) {
	case FormatShapefile:
		src, err = OpenShapefile(path)
	case FormatGeoJSON:
		src, err = OpenGeoJSON(path)
	case FormatGeoPackage:
		src, err = OpenGeoPackage(ctx, path)
	case FormatPostGIS:
		src, err = OpenPostGIS(ctx, path)
	default:
		return nil, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedSource)
	}
	if err != nil {
		return nil, &domain.SourceError{Source: path, Err: err}
	}
	o.logger.Debug("source opened", "path", path, "name", src.Name())
	return src, nil
}

// layerName derives a source name from a file path.
func layerName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(name, ".shp")
}

// fileSize returns the size of a file, or 0 if it cannot be read.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// licenseFile is the YAML sidecar that carries license information for a
// source file, e.g. countries.license.yaml next to countries.shp.
type licenseFile struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Attribution string `yaml:"attribution"`
}

// readLicense loads the license sidecar of path if present.
func readLicense(path string) domain.License {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".license.yaml", ".license.yml"} {
		data, err := os.ReadFile(base + ext) //#nosec G304 -- sidecar of a configured source
		if err != nil {
			continue
		}
		var lf licenseFile
		if err := yaml.Unmarshal(data, &lf); err != nil {
			continue
		}
		return domain.License{Name: lf.Name, URL: lf.URL, Attribution: lf.Attribution}
	}
	return domain.License{}
}
