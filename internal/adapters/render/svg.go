// Package render provides the canvases that turn projected geometry into
// documents: SVG via svgo and a braille terminal canvas.
package render

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// SVGContentType is the MIME type of SVG documents.
const SVGContentType = "image/svg+xml"

// DefaultPrecision is the number of SVG user units per planar unit. svgo
// takes integer coordinates, so planar values are scaled and rounded.
const DefaultPrecision = 10000

// TopGroupID is the id of the y-flipped group holding all layers.
const TopGroupID = "top_scale"

var errNoOpenGroup = errors.New("svg: no open group")

// errWriter remembers the first write error. svgo ignores write errors.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// SVGCanvas writes an SVG document. Planar coordinates are mapped through
// the view box onto the image; a top group flips the y axis so north is up.
type SVGCanvas struct {
	out       *errWriter
	canvas    *svg.SVG
	vp        output.Viewport
	precision float64
	depth     int
}

// NewSVGCanvas creates a canvas writing to w.
func NewSVGCanvas(w io.Writer, vp output.Viewport) *SVGCanvas {
	out := &errWriter{w: w}
	return &SVGCanvas{
		out:       out,
		canvas:    svg.New(out),
		vp:        vp,
		precision: DefaultPrecision,
	}
}

// Start implements output.Canvas.
func (c *SVGCanvas) Start() error {
	// The view box is given in planar coordinates; the flip maps y to -y.
	vb := c.vp.ViewBox
	c.canvas.Startview(c.vp.Width, c.vp.Height,
		c.scale(vb.MinX), c.scale(-(vb.MinY + vb.Height)), c.scale(vb.Width), c.scale(vb.Height))
	c.canvas.Group(
		fmt.Sprintf(`id="%s"`, TopGroupID),
		`transform="scale(1,-1)"`,
		`stroke-linecap="round"`,
	)
	return c.out.err
}

// BeginGroup implements output.Renderer.
func (c *SVGCanvas) BeginGroup(id string, style output.Style) error {
	attrs := []string{fmt.Sprintf(`id="%s"`, html.EscapeString(id))}
	if style.Stroke != "" {
		attrs = append(attrs, fmt.Sprintf(`stroke="%s"`, html.EscapeString(style.Stroke)))
	}
	if style.StrokeWidth != "" {
		attrs = append(attrs, fmt.Sprintf(`stroke-width="%s"`, html.EscapeString(style.StrokeWidth)))
	}
	if style.Fill != "" {
		attrs = append(attrs, fmt.Sprintf(`fill="%s"`, html.EscapeString(style.Fill)))
	}
	c.canvas.Group(attrs...)
	c.depth++
	return c.out.err
}

// Polyline implements output.Renderer.
func (c *SVGCanvas) Polyline(points []domain.Point) error {
	if len(points) == 0 {
		return c.out.err
	}
	xs, ys := c.coords(points)
	c.canvas.Polyline(xs, ys)
	return c.out.err
}

// Polygon implements output.Renderer.
func (c *SVGCanvas) Polygon(points []domain.Point) error {
	if len(points) == 0 {
		return c.out.err
	}
	xs, ys := c.coords(points)
	c.canvas.Polygon(xs, ys)
	return c.out.err
}

// EndGroup implements output.Renderer.
func (c *SVGCanvas) EndGroup() error {
	if c.depth == 0 {
		return errNoOpenGroup
	}
	c.depth--
	c.canvas.Gend()
	return c.out.err
}

// End implements output.Canvas. Groups left open are closed.
func (c *SVGCanvas) End() error {
	for ; c.depth > 0; c.depth-- {
		c.canvas.Gend()
	}
	c.canvas.Gend()
	c.canvas.End()
	return c.out.err
}

func (c *SVGCanvas) scale(v float64) int {
	return int(math.Round(v * c.precision))
}

func (c *SVGCanvas) coords(points []domain.Point) ([]int, []int) {
	xs := make([]int, len(points))
	ys := make([]int, len(points))
	for i, p := range points {
		xs[i] = c.scale(p.X)
		ys[i] = c.scale(p.Y)
	}
	return xs, ys
}

// SVGFactory implements output.CanvasFactory for SVG.
type SVGFactory struct{}

// NewCanvas implements output.CanvasFactory.
func (SVGFactory) NewCanvas(w io.Writer, vp output.Viewport) output.Canvas {
	return NewSVGCanvas(w, vp)
}

// ContentType implements output.CanvasFactory.
func (SVGFactory) ContentType() string { return SVGContentType }
