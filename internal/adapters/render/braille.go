package render

import (
	"errors"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// BrailleContentType is the MIME type of braille documents.
const BrailleContentType = "text/plain; charset=utf-8"

// brailleBits maps a dot position inside a 2x4 cell to its bit.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// BrailleCanvas draws outlines into a grid of braille cells, each holding
// 2x4 dots. Viewport Width and Height are in cells. Every group paints in
// its stroke colour when the stroke is a terminal colour (hex or ANSI
// number).
type BrailleCanvas struct {
	w      io.Writer
	vp     output.Viewport
	mask   [][]uint8
	colour [][]string
	stack  []string
	color  bool
}

// NewBrailleCanvas creates a canvas writing to w. With colour false the
// output has no escape sequences.
func NewBrailleCanvas(w io.Writer, vp output.Viewport, colour bool) *BrailleCanvas {
	c := &BrailleCanvas{w: w, vp: vp, color: colour}
	c.mask = make([][]uint8, max(vp.Height, 0))
	c.colour = make([][]string, len(c.mask))
	for i := range c.mask {
		c.mask[i] = make([]uint8, max(vp.Width, 0))
		c.colour[i] = make([]string, max(vp.Width, 0))
	}
	return c
}

// Start implements output.Canvas.
func (c *BrailleCanvas) Start() error { return nil }

// BeginGroup implements output.Renderer.
func (c *BrailleCanvas) BeginGroup(_ string, style output.Style) error {
	col := ""
	if isTerminalColour(style.Stroke) {
		col = style.Stroke
	} else if len(c.stack) > 0 {
		col = c.stack[len(c.stack)-1]
	}
	c.stack = append(c.stack, col)
	return nil
}

// Polyline implements output.Renderer.
func (c *BrailleCanvas) Polyline(points []domain.Point) error {
	for i := 1; i < len(points); i++ {
		c.line(points[i-1], points[i])
	}
	return nil
}

// Polygon implements output.Renderer.
func (c *BrailleCanvas) Polygon(points []domain.Point) error {
	if err := c.Polyline(points); err != nil {
		return err
	}
	if len(points) > 2 {
		c.line(points[len(points)-1], points[0])
	}
	return nil
}

// EndGroup implements output.Renderer.
func (c *BrailleCanvas) EndGroup() error {
	if len(c.stack) == 0 {
		return errors.New("braille: no open group")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// End implements output.Canvas.
func (c *BrailleCanvas) End() error {
	_, err := io.WriteString(c.w, c.String())
	return err
}

// Lines returns the rendered rows.
func (c *BrailleCanvas) Lines() []string {
	out := make([]string, len(c.mask))
	for y, row := range c.mask {
		var b strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && c.colour[y][x] == c.colour[y][start] {
				continue
			}
			b.WriteString(c.paint(c.colour[y][start], cells(row[start:x])))
			start = x
		}
		out[y] = b.String()
	}
	return out
}

// String returns the rendered rows joined by newlines.
func (c *BrailleCanvas) String() string {
	return strings.Join(c.Lines(), "\n") + "\n"
}

func (c *BrailleCanvas) paint(col, s string) string {
	if !c.color || col == "" {
		return s
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(col)).Render(s)
}

func cells(masks []uint8) string {
	runes := make([]rune, len(masks))
	for i, m := range masks {
		if m == 0 {
			runes[i] = ' '
		} else {
			runes[i] = rune(0x2800 + int(m))
		}
	}
	return string(runes)
}

// dot maps a planar point to dot coordinates. y grows downwards.
func (c *BrailleCanvas) dot(p domain.Point) (int, int, bool) {
	vb := c.vp.ViewBox
	if vb.Width <= 0 || vb.Height <= 0 {
		return 0, 0, false
	}
	fx := (p.X - vb.MinX) / vb.Width * float64(c.vp.Width*2)
	fy := (vb.MinY + vb.Height - p.Y) / vb.Height * float64(c.vp.Height*4)
	if math.IsNaN(fx) || math.IsNaN(fy) || math.Abs(fx) > 1e6 || math.Abs(fy) > 1e6 {
		return 0, 0, false
	}
	return int(math.Floor(fx)), int(math.Floor(fy)), true
}

// line draws a segment with Bresenham's algorithm on the dot grid.
func (c *BrailleCanvas) line(a, b domain.Point) {
	x0, y0, ok0 := c.dot(a)
	x1, y1, ok1 := c.dot(b)
	if !ok0 || !ok1 {
		return
	}
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	e := dx + dy
	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *BrailleCanvas) set(dx, dy int) {
	if dx < 0 || dy < 0 {
		return
	}
	cx, cy := dx/2, dy/4
	if cy >= len(c.mask) || cx >= len(c.mask[cy]) {
		return
	}
	c.mask[cy][cx] |= brailleBits[dx%2][dy%4]
	if len(c.stack) > 0 {
		c.colour[cy][cx] = c.stack[len(c.stack)-1]
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// isTerminalColour reports whether s is a hex colour or an ANSI colour
// number that lipgloss understands.
func isTerminalColour(s string) bool {
	if strings.HasPrefix(s, "#") && (len(s) == 4 || len(s) == 7) {
		return true
	}
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BrailleFactory implements output.CanvasFactory for terminal output.
type BrailleFactory struct {
	Colour bool
}

// NewCanvas implements output.CanvasFactory.
func (f BrailleFactory) NewCanvas(w io.Writer, vp output.Viewport) output.Canvas {
	return NewBrailleCanvas(w, vp, f.Colour)
}

// ContentType implements output.CanvasFactory.
func (BrailleFactory) ContentType() string { return BrailleContentType }
