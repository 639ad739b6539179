package source

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// shpReader is the part of shp.Reader and shp.ZipReader used here.
type shpReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Fields() []shp.Field
	Err() error
	Close() error
}

// Shapefile reads an ESRI shapefile, either as a .shp with its companion
// files or as a zip archive holding them.
type Shapefile struct {
	path    string
	name    string
	zipped  bool
	license domain.License
}

// OpenShapefile checks that path can be read as a shapefile.
func OpenShapefile(path string) (*Shapefile, error) {
	s := &Shapefile{
		path:    path,
		name:    layerName(path),
		zipped:  strings.EqualFold(filepath.Ext(path), ".zip"),
		license: readLicense(path),
	}
	r, err := s.open()
	if err != nil {
		return nil, err
	}
	_ = r.Close()
	return s, nil
}

func (s *Shapefile) open() (shpReader, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}
	if s.zipped {
		return shp.OpenZip(s.path)
	}
	return shp.Open(s.path)
}

// Name implements output.ShapeSource.
func (s *Shapefile) Name() string { return s.name }

// Info implements output.Describer.
func (s *Shapefile) Info() output.SourceInfo {
	return output.SourceInfo{Format: FormatShapefile, Size: fileSize(s.path), License: s.license}
}

// Shapes implements output.ShapeSource. Each call reads the file again.
func (s *Shapefile) Shapes(ctx context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		r, err := s.open()
		if err != nil {
			yield(domain.Shape{}, err)
			return
		}
		defer func() { _ = r.Close() }()

		fields := r.Fields()
		for r.Next() {
			if err := ctx.Err(); err != nil {
				yield(domain.Shape{}, err)
				return
			}
			n, geom := r.Shape()
			shape, err := convertShape(geom)
			if err != nil {
				yield(domain.Shape{}, fmt.Errorf("record %d: %w", n, err))
				return
			}
			if len(fields) > 0 {
				shape.Properties = make(map[string]interface{}, len(fields))
				for i, f := range fields {
					shape.Properties[f.String()] = strings.TrimSpace(r.Attribute(i))
				}
			}
			if !yield(shape, nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(domain.Shape{}, err)
		}
	}
}

// Close implements output.ShapeSource.
func (s *Shapefile) Close() error { return nil }

// convertShape maps a shapefile record onto a shape. Z and M values are
// dropped.
func convertShape(geom shp.Shape) (domain.Shape, error) {
	switch g := geom.(type) {
	case *shp.Null, nil:
		return domain.Shape{}, nil
	case *shp.Polygon:
		return multiPart(domain.KindPolygon, g.Parts, g.Points), nil
	case *shp.PolygonZ:
		return multiPart(domain.KindPolygon, g.Parts, g.Points), nil
	case *shp.PolygonM:
		return multiPart(domain.KindPolygon, g.Parts, g.Points), nil
	case *shp.PolyLine:
		return multiPart(domain.KindPolyline, g.Parts, g.Points), nil
	case *shp.PolyLineZ:
		return multiPart(domain.KindPolyline, g.Parts, g.Points), nil
	case *shp.PolyLineM:
		return multiPart(domain.KindPolyline, g.Parts, g.Points), nil
	case *shp.Point:
		return domain.NewShape(domain.KindPoint, []domain.LonLat{{Lon: g.X, Lat: g.Y}}), nil
	case *shp.PointZ:
		return domain.NewShape(domain.KindPoint, []domain.LonLat{{Lon: g.X, Lat: g.Y}}), nil
	case *shp.PointM:
		return domain.NewShape(domain.KindPoint, []domain.LonLat{{Lon: g.X, Lat: g.Y}}), nil
	case *shp.MultiPoint:
		parts := make([]int32, len(g.Points))
		for i := range parts {
			parts[i] = int32(i) //#nosec G115 -- bounded by NumPoints
		}
		return multiPart(domain.KindPoint, parts, g.Points), nil
	default:
		return domain.Shape{}, fmt.Errorf("shape type %T: %w", geom, domain.ErrUnsupportedGeometry)
	}
}

func multiPart(kind domain.GeometryKind, parts []int32, points []shp.Point) domain.Shape {
	s := domain.Shape{
		Kind:   kind,
		Points: make([]domain.LonLat, len(points)),
		Parts:  make([]int, len(parts)),
	}
	for i, p := range points {
		s.Points[i] = domain.LonLat{Lon: p.X, Lat: p.Y}
	}
	for i, p := range parts {
		s.Parts[i] = int(p)
	}
	if len(s.Parts) == 0 && len(s.Points) > 0 {
		s.Parts = []int{0}
	}
	s.BBox = domain.BBoxOf(s.Points)
	return s
}
