package output

import (
	"io"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Style holds the drawing attributes of a group. Values are SVG attribute
// strings, e.g. a width of "1%" or a fill of "transparent".
type Style struct {
	Stroke      string `json:"stroke,omitempty"`
	StrokeWidth string `json:"stroke_width,omitempty"`
	Fill        string `json:"fill,omitempty"`
}

// DefaultStyle returns black outlines without fill.
func DefaultStyle() Style {
	return Style{Stroke: "black", StrokeWidth: "1%", Fill: "transparent"}
}

// ViewBox is the planar window that is mapped onto the image.
type ViewBox struct {
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes the output image.
type Viewport struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	ViewBox ViewBox `json:"view_box"`
}

// DefaultViewport returns the world-map image size and window.
func DefaultViewport() Viewport {
	return Viewport{
		Width:   1000,
		Height:  750,
		ViewBox: ViewBox{MinX: -3.5, MinY: -1.5, Width: 7, Height: 3},
	}
}

// Renderer defines the secondary port that receives projected geometry.
// Calls are made from a single goroutine in draw order.
type Renderer interface {
	// BeginGroup opens a named group with drawing attributes.
	BeginGroup(id string, style Style) error

	// Polyline draws an open line through the points.
	Polyline(points []domain.Point) error

	// Polygon draws a closed ring through the points.
	Polygon(points []domain.Point) error

	// EndGroup closes the innermost open group.
	EndGroup() error
}

// Canvas is a Renderer that produces a complete document.
type Canvas interface {
	Renderer

	// Start writes the document header.
	Start() error

	// End finishes the document.
	End() error
}

// CanvasFactory creates canvases of one output format.
type CanvasFactory interface {
	// NewCanvas creates a canvas writing to w.
	NewCanvas(w io.Writer, vp Viewport) Canvas

	// ContentType returns the MIME type of the produced documents.
	ContentType() string
}
