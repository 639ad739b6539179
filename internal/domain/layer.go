package domain

import (
	"time"

	"github.com/dhconnelly/rtreego"
)

// Layer is a shape collection loaded from one source file, held in memory
// with a spatial index over the shape bounding boxes.
type Layer struct {
	ID       string       // Unique identifier (derived from filename)
	Name     string       // Display name
	Path     string       // File path or DSN the layer was read from
	Format   string       // Source format (shapefile, geojson, geopackage, postgis)
	Size     int64        // Source size in bytes
	Kind     GeometryKind // Dominant geometry kind
	BBox     BBox         // Extent of all shapes
	License  License      // License information
	LoadedAt time.Time    // Load timestamp
	Indexed  bool         // Spatial index built?

	shapes []Shape
	index  *rtreego.Rtree
}

// indexedShape wraps a shape position for R-tree storage.
type indexedShape struct {
	pos  int
	bbox BBox
}

// Bounds implements rtreego.Spatial.
func (s *indexedShape) Bounds() rtreego.Rect {
	return bboxRect(s.bbox)
}

// bboxRect converts a box into an R-tree rectangle. Degenerate boxes get a
// small extent because the tree rejects zero lengths.
func bboxRect(b BBox) rtreego.Rect {
	const epsilon = 0.0001
	w := b.MaxX - b.MinX
	h := b.MaxY - b.MinY
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.MinX, b.MinY}, []float64{w, h})
	return rect
}

// NewLayer builds a layer from shapes and indexes them.
func NewLayer(id, name string, shapes []Shape) *Layer {
	l := &Layer{
		ID:     id,
		Name:   name,
		shapes: shapes,
	}
	kinds := make(map[GeometryKind]int)
	for i, s := range shapes {
		if i == 0 {
			l.BBox = s.BBox
		} else {
			l.BBox = l.BBox.Union(s.BBox)
		}
		kinds[s.Kind]++
	}
	best := 0
	for k, n := range kinds {
		if n > best || (n == best && k > l.Kind) {
			l.Kind, best = k, n
		}
	}
	l.BuildIndex()
	return l
}

// BuildIndex (re)creates the spatial index.
func (l *Layer) BuildIndex() {
	tree := rtreego.NewTree(2, 25, 50)
	for i := range l.shapes {
		tree.Insert(&indexedShape{pos: i, bbox: l.shapes[i].BBox})
	}
	l.index = tree
	l.Indexed = true
}

// Shapes returns the shapes in source order.
func (l *Layer) Shapes() []Shape {
	return l.shapes
}

// ShapeCount returns the number of shapes.
func (l *Layer) ShapeCount() int {
	return len(l.shapes)
}

// ShapesIn returns the shapes whose bounding box intersects the given box,
// in source order.
func (l *Layer) ShapesIn(b BBox) []Shape {
	if l.index == nil {
		var out []Shape
		for _, s := range l.shapes {
			if s.BBox.Intersects(b) {
				out = append(out, s)
			}
		}
		return out
	}

	hits := l.index.SearchIntersect(bboxRect(b))
	marks := make([]bool, len(l.shapes))
	for _, h := range hits {
		marks[h.(*indexedShape).pos] = true
	}
	out := make([]Shape, 0, len(hits))
	for i, ok := range marks {
		if ok {
			out = append(out, l.shapes[i])
		}
	}
	return out
}

// IsReady returns true if the layer is indexed and can be drawn.
func (l *Layer) IsReady() bool {
	return l.Indexed
}

// LayerStatus represents the status of a layer.
type LayerStatus string

// Layer statuses.
const (
	StatusLoading   LayerStatus = "loading"
	StatusIndexing  LayerStatus = "indexing"
	StatusReady     LayerStatus = "ready"
	StatusError     LayerStatus = "error"
	StatusUnloading LayerStatus = "unloading"
)

// License contains license information for a layer.
type License struct {
	Name        string // License name (e.g., "CC BY 4.0")
	URL         string // Link to the license text
	Attribution string // Attribution text to display
}

// IsEmpty returns true if no license information is set.
func (l *License) IsEmpty() bool {
	return l.Name == "" && l.URL == "" && l.Attribution == ""
}

// String returns the attribution text or license name.
func (l *License) String() string {
	if l.Attribution != "" {
		return l.Attribution
	}
	return l.Name
}
