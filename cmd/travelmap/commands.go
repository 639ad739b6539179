package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/travelmap/internal/adapters/tui"
	"github.com/jobrunner/travelmap/internal/app"
	"github.com/jobrunner/travelmap/internal/application"
	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/input"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// Terminal size used for braille output when no size is given. The ratio
// keeps the dots of the default view box square.
const (
	brailleWidth  = 120
	brailleHeight = 26
)

var renderCmd = &cobra.Command{
	Use:   "render LAYER...",
	Short: "Draw layers into an SVG document or the terminal",
	Long: `Draw one or more layers through the projection pipeline. Layers are
shapefiles (.shp or zipped), GeoJSON, GeoPackage files or PostGIS DSNs such
as postgres://user@host/db?table=public.countries. Each layer becomes one
group, drawn in the order given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

var viewCmd = &cobra.Command{
	Use:   "view LAYER...",
	Short: "Explore layers interactively in the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runView,
}

var projectCmd = &cobra.Command{
	Use:   "project LON LAT",
	Short: "Project a point, or invert one with --invert X Y",
	Long: `Project a longitude and latitude in degrees through the pipeline and
print the planar X Y. Put -- before negative coordinates:

  travelmap project -p mollweide -- -122.4 37.8`,
	Args:  cobra.ExactArgs(2),
	RunE:  runProject,
}

var projectionsCmd = &cobra.Command{
	Use:   "projections",
	Short: "List the available projections",
	Args:  cobra.NoArgs,
	RunE:  runProjections,
}

func init() {
	renderCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	renderCmd.Flags().StringP("format", "f", "svg", "output format (svg, braille)")
	renderCmd.Flags().Int("width", 1000, "image width in pixels or terminal columns")
	renderCmd.Flags().Int("height", 750, "image height in pixels or terminal rows")

	projectCmd.Flags().Bool("invert", false, "map a projected X Y back to LON LAT")

	_ = viper.BindPFlag("render.format", renderCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("render.width", renderCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("render.height", renderCmd.Flags().Lookup("height"))
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(cfg, nil, nil, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	braille := cfg.Render.Format == "braille"
	vp := engine.Maps.Viewport()
	if braille && !cmd.Flags().Changed("width") && !cmd.Flags().Changed("height") {
		vp.Width, vp.Height = brailleWidth, brailleHeight
	}

	outPath, _ := cmd.Flags().GetString("output")
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}

	canvas := engine.Canvases.NewCanvas(out, vp)
	err = drawLayers(ctx, engine, canvas, cfg.Projection.Pipeline, args, braille, logger)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// drawLayers opens each layer in turn and draws it as one group.
func drawLayers(
	ctx context.Context,
	engine *app.Engine,
	canvas output.Canvas,
	pipeline string,
	paths []string,
	palette bool,
	logger *slog.Logger,
) error {
	proj, err := engine.Projections.Build(pipeline)
	if err != nil {
		return err
	}
	if err := canvas.Start(); err != nil {
		return err
	}
	for i, path := range paths {
		src, err := engine.Opener.Open(ctx, path)
		if err != nil {
			return err
		}
		style := output.Style{}
		if palette {
			style = tui.LayerStyle(i)
		}
		stats, err := engine.Maps.Draw(ctx, input.DrawRequest{
			Source:     src,
			Projection: proj,
			Renderer:   canvas,
			Group:      application.GroupID(application.DeriveLayerID(path)),
			Style:      style,
		})
		_ = src.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Info("layer drawn",
			"path", path,
			"shapes", stats.Shapes,
			"parts", stats.Kept,
			"culled", stats.Culled,
			"shifted", stats.Shifted,
			"excluded", stats.Excluded,
			"dropped_points", stats.Dropped,
			"duration", stats.Duration,
		)
	}
	return canvas.End()
}

// openOutput opens the render target. Stdout is never closed.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func runView(_ *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	// The viewer owns the terminal; only errors reach stderr, after it exits.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := app.NewEngine(cfg, nil, nil, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layers := make([]tui.Layer, 0, len(args))
	for i, path := range args {
		name, shapes, err := readShapes(ctx, engine, path)
		if err != nil {
			return err
		}
		layers = append(layers, tui.Layer{Name: name, Shapes: shapes, Style: tui.LayerStyle(i)})
	}

	model, err := tui.New(engine.Maps, engine.Projections, layers, cfg.Projection.Pipeline, cfg.Render.Viewport().ViewBox, cfg.Render.Colour)
	if err != nil {
		return err
	}
	if err := tui.Run(ctx, model); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readShapes loads all shapes of a layer into memory.
func readShapes(ctx context.Context, engine *app.Engine, path string) (string, []domain.Shape, error) {
	src, err := engine.Opener.Open(ctx, path)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = src.Close() }()

	var shapes []domain.Shape
	for shape, err := range src.Shapes(ctx) {
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", path, err)
		}
		shapes = append(shapes, shape)
	}
	return src.Name(), shapes, nil
}

func runProject(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(cfg, nil, nil, nil, logger)
	if err != nil {
		return err
	}

	a, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return &domain.ValidationError{Field: "coordinate", Value: args[0], Constraint: "number", Message: "not a number"}
	}
	b, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return &domain.ValidationError{Field: "coordinate", Value: args[1], Constraint: "number", Message: "not a number"}
	}

	ctx := cmd.Context()
	if invert, _ := cmd.Flags().GetBool("invert"); invert {
		ll, err := engine.Projections.Invert(ctx, cfg.Projection.Pipeline, domain.Point{X: a, Y: b})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.10g %.10g\n", ll.Lon, ll.Lat)
		return nil
	}

	pt, err := engine.Projections.Project(ctx, cfg.Projection.Pipeline, domain.LonLat{Lon: a, Lat: b})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.10g %.10g\n", pt.X, pt.Y)
	return nil
}

func runProjections(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(cfg, nil, nil, nil, logger)
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "PARAMETERS", "INVERTIBLE", "ITERATIVE")
	for _, info := range engine.Projections.Projections(cmd.Context()) {
		t.Row(info.Name, info.Params, yesNo(info.Invertible), yesNo(info.Iterative))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
