package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// unitViewport maps [0,1]x[0,1] onto w x h cells.
func unitViewport(w, h int) output.Viewport {
	return output.Viewport{Width: w, Height: h, ViewBox: output.ViewBox{Width: 1, Height: 1}}
}

func TestBrailleCanvasDots(t *testing.T) {
	tests := []struct {
		name string
		pt   domain.Point
		want rune
	}{
		{"top left", domain.Point{X: 0, Y: 0.99}, 0x2801},
		{"top right", domain.Point{X: 0.99, Y: 0.99}, 0x2808},
		{"bottom left", domain.Point{X: 0, Y: 0.01}, 0x2840},
		{"bottom right", domain.Point{X: 0.99, Y: 0.01}, 0x2880},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBrailleCanvas(&bytes.Buffer{}, unitViewport(1, 1), false)
			require.NoError(t, c.BeginGroup("g", output.Style{}))
			require.NoError(t, c.Polyline([]domain.Point{tt.pt, tt.pt}))

			got := []rune(c.Lines()[0])
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Lines() = %q, want %q", string(got), string(tt.want))
			}
		})
	}
}

func TestBrailleCanvasLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewBrailleCanvas(&buf, unitViewport(4, 1), false)
	require.NoError(t, c.Start())
	require.NoError(t, c.BeginGroup("g", output.DefaultStyle()))
	require.NoError(t, c.Polyline([]domain.Point{{X: 0, Y: 0.99}, {X: 0.99, Y: 0.99}}))
	require.NoError(t, c.EndGroup())
	require.NoError(t, c.End())

	// A horizontal line through the top dot row of every cell.
	assert.Equal(t, strings.Repeat(string(rune(0x2809)), 4)+"\n", buf.String())
}

func TestBrailleCanvasPolygonCloses(t *testing.T) {
	c := NewBrailleCanvas(&bytes.Buffer{}, unitViewport(2, 1), false)
	require.NoError(t, c.BeginGroup("g", output.Style{}))
	require.NoError(t, c.Polygon([]domain.Point{{X: 0, Y: 0.99}, {X: 0.99, Y: 0.99}, {X: 0.99, Y: 0}}))

	lines := c.Lines()
	// The outline covers both cells.
	assert.NotEqual(t, ' ', []rune(lines[0])[0])
	assert.NotEqual(t, ' ', []rune(lines[0])[1])
}

func TestBrailleCanvasClipsOutside(t *testing.T) {
	c := NewBrailleCanvas(&bytes.Buffer{}, unitViewport(2, 1), false)
	require.NoError(t, c.BeginGroup("g", output.Style{}))
	require.NoError(t, c.Polyline([]domain.Point{{X: 5, Y: 5}, {X: 6, Y: 6}}))
	assert.Equal(t, "  ", c.Lines()[0])
}

func TestBrailleCanvasColour(t *testing.T) {
	c := NewBrailleCanvas(&bytes.Buffer{}, unitViewport(1, 1), true)
	require.NoError(t, c.BeginGroup("g", output.Style{Stroke: "#ff0000"}))
	require.NoError(t, c.Polyline([]domain.Point{{X: 0, Y: 0.99}, {X: 0, Y: 0.99}}))
	require.NoError(t, c.EndGroup())

	assert.Contains(t, c.Lines()[0], string(rune(0x2801)))
}

func TestBrailleCanvasEndGroupWithoutGroup(t *testing.T) {
	c := NewBrailleCanvas(&bytes.Buffer{}, unitViewport(1, 1), false)
	assert.Error(t, c.EndGroup())
}

func TestIsTerminalColour(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"#fff", true},
		{"#00ff00", true},
		{"42", true},
		{"black", false},
		{"", false},
		{"1234", false},
		{"#12", false},
	}
	for _, tt := range tests {
		if got := isTerminalColour(tt.in); got != tt.want {
			t.Errorf("isTerminalColour(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBrailleFactory(t *testing.T) {
	f := BrailleFactory{}
	assert.Equal(t, BrailleContentType, f.ContentType())
	assert.IsType(t, &BrailleCanvas{}, f.NewCanvas(&bytes.Buffer{}, unitViewport(1, 1)))
}
