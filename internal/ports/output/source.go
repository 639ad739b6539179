package output

import (
	"context"
	"iter"

	"github.com/jobrunner/travelmap/internal/domain"
)

// ShapeSource defines the secondary port for reading geographic shapes.
//
// Shapes yields every shape once, lazily and in source order. A source
// cannot be restarted; open it again to read the shapes a second time.
type ShapeSource interface {
	// Name returns the layer name of the source.
	Name() string

	// Shapes returns the shape sequence. Iteration stops at the first
	// error, which is yielded together with a zero shape.
	Shapes(ctx context.Context) iter.Seq2[domain.Shape, error]

	// Close releases the underlying file or connection.
	Close() error
}

// SourceOpener defines the secondary port that opens shape sources by path.
type SourceOpener interface {
	// Open opens the source at path. The format is chosen by extension or
	// URL scheme.
	Open(ctx context.Context, path string) (ShapeSource, error)

	// Supports reports whether path can be opened.
	Supports(path string) bool
}

// SourceInfo describes an opened source.
type SourceInfo struct {
	Format  string         // shapefile, geojson, geopackage, postgis
	Size    int64          // Size in bytes, zero when unknown
	License domain.License // License metadata if the source carries any
}

// Describer is implemented by sources that know their format details.
type Describer interface {
	Info() SourceInfo
}
