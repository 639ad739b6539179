package projection

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
)

func TestCompoundOrderMatters(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
	}{
		{"rotate 45", 45},
		{"rotate 90", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rotateFirst := NewCompound(mustRotate(t, tt.angle), mustResize(t, 2, 1))
			resizeFirst := NewCompound(mustResize(t, 2, 1), mustRotate(t, tt.angle))

			in := domain.Point{X: 1, Y: 0}
			a := rotateFirst.Project(in)
			b := resizeFirst.Project(in)
			if math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 {
				t.Errorf("pipelines agree on %v: %v vs %v", in, a, b)
			}

			origin := domain.Point{}
			if rotateFirst.Project(origin) != resizeFirst.Project(origin) {
				t.Error("pipelines disagree on the origin")
			}
		})
	}
}

func TestCompoundUniformResizeScenario(t *testing.T) {
	a := NewCompound(mustRotate(t, 45), mustResize(t, 2))
	b := NewCompound(mustResize(t, 2), mustRotate(t, 45))

	in := domain.Point{X: 1, Y: 0}
	got := a.Project(in)
	assert.InDelta(t, math.Sqrt2, got.X, 1e-12)
	assert.InDelta(t, math.Sqrt2, got.Y, 1e-12)

	// A uniform scale commutes with a rotation, so only the anisotropic
	// case in TestCompoundOrderMatters can tell the orders apart.
	other := b.Project(in)
	assert.InDelta(t, got.X, other.X, 1e-12)
	assert.InDelta(t, got.Y, other.Y, 1e-12)
}

func TestCompoundEmptyIsIdentity(t *testing.T) {
	c := NewCompound()
	in := domain.Point{X: 0.3, Y: -0.7}
	if got := c.Project(in); got != in {
		t.Errorf("Project() = %v, want %v", got, in)
	}
	got, err := c.Invert(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.True(t, c.HasInverse())
	assert.Equal(t, "", c.Name())
}

func TestCompoundInvert(t *testing.T) {
	c := NewCompound(NewNaturalEarth2(), mustRotate(t, 45), mustTranslate(t, 0.5, -0.25), mustResize(t, 3, 2))
	require.True(t, c.HasInverse())

	for _, ll := range sampleGrid() {
		in := ll.Radians()
		got, err := c.Invert(c.Project(in))
		require.NoError(t, err)
		assert.InDelta(t, in.X, got.X, roundTripDelta, "lon of %v", ll)
		assert.InDelta(t, in.Y, got.Y, roundTripDelta, "lat of %v", ll)
	}
}

func TestCompoundWithForwardOnlyStage(t *testing.T) {
	c := NewCompound(NewRobinson(), mustRotate(t, 30))
	if c.HasInverse() {
		t.Fatal("HasInverse() = true, want false")
	}
	_, err := c.Invert(domain.Point{X: 1, Y: 1})
	var nie *domain.NoInverseError
	if !errors.As(err, &nie) {
		t.Fatalf("Invert() error = %v, want *NoInverseError", err)
	}
	if nie.Projection != "robinson" {
		t.Errorf("NoInverseError.Projection = %q, want robinson", nie.Projection)
	}
}

func TestCompoundStageErrorIsWrapped(t *testing.T) {
	c := NewCompound(NewGallPeters(), mustTranslate(t, 0, 10))
	_, err := c.Invert(domain.Point{X: 0, Y: 10})
	require.NoError(t, err)

	_, err = c.Invert(domain.Point{X: 0, Y: 20})
	assert.ErrorIs(t, err, domain.ErrOutOfDomain)
}

func TestCompoundAddProjection(t *testing.T) {
	inner := NewCompound(NewNaturalEarth2(), mustRotate(t, 45))
	c := NewCompound()
	c.AddProjection(inner)
	c.AddProjection(nil)
	c.AddProjection(mustTranslate(t, 1))

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if want := "naturalearth2 | rotate | translate"; c.Name() != want {
		t.Errorf("Name() = %q, want %q", c.Name(), want)
	}

	stages := c.Stages()
	stages[0] = nil
	if c.Stages()[0] == nil {
		t.Error("Stages() exposes internal slice")
	}
}

func TestCompoundProjectPointsConvertsOnce(t *testing.T) {
	c := NewCompound(mustTranslate(t, 0))
	got := c.ProjectPoints([]domain.LonLat{{Lon: 180, Lat: 90}})
	assert.InDelta(t, math.Pi, got[0].X, 1e-15)
	assert.InDelta(t, math.Pi/2, got[0].Y, 1e-15)
}
