// Package tui is an interactive terminal map viewer. Layers are drawn into
// a braille canvas through the same pipeline the renderers use.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jobrunner/travelmap/internal/adapters/render"
	"github.com/jobrunner/travelmap/internal/application"
	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/input"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/projection"
)

const (
	zoomStep = 1.25
	maxZoom  = 256.0
	minZoom  = 0.25
	panStep  = 0.1 // fraction of the visible width or height

	headerHeight = 1
	footerHeight = 2
)

// Drawer streams a source through a projection into a renderer.
type Drawer interface {
	Draw(ctx context.Context, req input.DrawRequest) (input.DrawStats, error)
}

// Builder parses projection pipelines.
type Builder interface {
	Build(pipeline string) (projection.Projection, error)
}

// Layer is one set of shapes shown in the viewer.
type Layer struct {
	Name   string
	Shapes []domain.Shape
	Style  output.Style
}

// Model is the bubbletea model of the viewer.
type Model struct {
	drawer  Drawer
	builder Builder
	layers  []Layer
	colour  bool

	pipeline string
	proj     projection.Projection
	home     output.ViewBox
	zoom     float64
	cx, cy   float64

	width  int
	height int
	canvas []string
	parts  int

	keys    keyMap
	help    help.Model
	input   textinput.Model
	editing bool
	status  string
	err     error
}

// New creates a viewer showing layers through pipeline. home is the
// window shown at zoom 1.
func New(drawer Drawer, builder Builder, layers []Layer, pipeline string, home output.ViewBox, colour bool) (Model, error) {
	proj, err := builder.Build(pipeline)
	if err != nil {
		return Model{}, err
	}
	if home.Width <= 0 || home.Height <= 0 {
		home = output.DefaultViewport().ViewBox
	}

	ti := textinput.New()
	ti.Prompt = promptStyle.Render("projection> ")
	ti.Placeholder = "naturalearth2 | rotate:45"
	ti.CharLimit = 256

	m := Model{
		drawer:   drawer,
		builder:  builder,
		layers:   layers,
		colour:   colour,
		pipeline: pipeline,
		proj:     proj,
		home:     home,
		keys:     defaultKeys(),
		help:     help.New(),
		input:    ti,
	}
	m.resetView()
	m.status = fmt.Sprintf("%d layers", len(layers))
	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-20, 10)
		m.redraw()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ZoomIn):
			m.setZoom(m.zoom * zoomStep)
		case key.Matches(msg, m.keys.ZoomOut):
			m.setZoom(m.zoom / zoomStep)
		case key.Matches(msg, m.keys.Reset):
			m.resetView()
			m.status = "view reset"
		case key.Matches(msg, m.keys.Up):
			m.cy += m.window().Height * panStep
		case key.Matches(msg, m.keys.Down):
			m.cy -= m.window().Height * panStep
		case key.Matches(msg, m.keys.Left):
			m.cx -= m.window().Width * panStep
		case key.Matches(msg, m.keys.Right):
			m.cx += m.window().Width * panStep
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Pipeline):
			m.editing = true
			m.input.SetValue(m.pipeline)
			m.input.CursorEnd()
			return m, m.input.Focus()
		default:
			return m, nil
		}
		m.redraw()
		return m, nil
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		m.status = "projection unchanged"
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()
		m.applyPipeline(m.input.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applyPipeline switches to a new projection and recentres the view.
func (m *Model) applyPipeline(pipeline string) {
	pipeline = strings.TrimSpace(pipeline)
	proj, err := m.builder.Build(pipeline)
	if err != nil {
		m.err = err
		m.status = "invalid projection"
		return
	}
	m.pipeline = pipeline
	m.proj = proj
	m.err = nil
	m.resetView()
	m.status = "projection " + proj.Name()
	m.redraw()
}

func (m *Model) resetView() {
	m.zoom = 1
	m.cx = m.home.MinX + m.home.Width/2
	m.cy = m.home.MinY + m.home.Height/2
}

func (m *Model) setZoom(z float64) {
	m.zoom = min(max(z, minZoom), maxZoom)
	m.status = fmt.Sprintf("zoom %.2fx", m.zoom)
}

// mapSize returns the map area in cells.
func (m Model) mapSize() (int, int) {
	return max(m.width, 1), max(m.height-headerHeight-footerHeight, 1)
}

// window returns the visible part of the projected plane. The width
// follows the zoom; the height keeps braille dots square.
func (m Model) window() output.ViewBox {
	cols, rows := m.mapSize()
	w := m.home.Width / m.zoom
	h := w * float64(rows*4) / float64(cols*2)
	return output.ViewBox{MinX: m.cx - w/2, MinY: m.cy - h/2, Width: w, Height: h}
}

// redraw renders all layers into the canvas lines.
func (m *Model) redraw() {
	if m.width == 0 || m.height == 0 {
		return
	}
	cols, rows := m.mapSize()
	canvas := render.NewBrailleCanvas(io.Discard, output.Viewport{Width: cols, Height: rows, ViewBox: m.window()}, m.colour)

	m.parts = 0
	m.err = nil
	for _, layer := range m.layers {
		stats, err := m.drawer.Draw(context.Background(), input.DrawRequest{
			Source:     application.NewSliceSource(layer.Name, layer.Shapes),
			Projection: m.proj,
			Renderer:   canvas,
			Style:      layer.Style,
		})
		if err != nil {
			m.err = fmt.Errorf("layer %s: %w", layer.Name, err)
			break
		}
		m.parts += stats.Kept
	}
	m.canvas = canvas.Lines()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" travelmap "))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" %s  zoom %.2fx  parts %d", m.pipeline, m.zoom, m.parts)))
	b.WriteByte('\n')
	for _, line := range m.canvas {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	switch {
	case m.editing:
		b.WriteString(m.input.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
	default:
		b.WriteString(dimStyle.Render(m.status))
	}
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Run shows the viewer until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// LayerStyle returns the style of the i-th layer from the palette.
func LayerStyle(i int) output.Style {
	style := output.DefaultStyle()
	style.Stroke = Palette[i%len(Palette)]
	return style
}
