package source

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// GeoJSON is a source over a GeoJSON FeatureCollection, a single Feature or
// a bare geometry.
type GeoJSON struct {
	path     string
	name     string
	features []*geojson.Feature
	license  domain.License
}

// OpenGeoJSON reads and parses the file at path.
func OpenGeoJSON(path string) (*GeoJSON, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path from configuration or storage listing
	if err != nil {
		return nil, err
	}
	features, err := parseGeoJSON(data)
	if err != nil {
		return nil, err
	}
	return &GeoJSON{
		path:     path,
		name:     layerName(path),
		features: features,
		license:  readLicense(path),
	}, nil
}

func parseGeoJSON(data []byte) ([]*geojson.Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, fmt.Errorf("geojson: missing type member: %w", domain.ErrInvalidInput)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("geojson: %w", err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

// Name implements output.ShapeSource.
func (g *GeoJSON) Name() string { return g.name }

// Info implements output.Describer.
func (g *GeoJSON) Info() output.SourceInfo {
	return output.SourceInfo{Format: FormatGeoJSON, Size: fileSize(g.path), License: g.license}
}

// Shapes implements output.ShapeSource.
func (g *GeoJSON) Shapes(ctx context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		for _, f := range g.features {
			if err := ctx.Err(); err != nil {
				yield(domain.Shape{}, err)
				return
			}
			var props map[string]interface{}
			if len(f.Properties) > 0 {
				props = map[string]interface{}(f.Properties)
			}
			if !yield(ShapeFromGeometry(f.Geometry, props), nil) {
				return
			}
		}
	}
}

// Close implements output.ShapeSource.
func (g *GeoJSON) Close() error { return nil }
