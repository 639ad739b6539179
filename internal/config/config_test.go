package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/preprocess"
	"github.com/jobrunner/travelmap/internal/projection"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "naturalearth2 | rotate:45", cfg.Projection.Pipeline)
	assert.Equal(t, projection.DefaultMaxIterations, cfg.Projection.MaxIterations)
	assert.Equal(t, preprocess.DefaultAreaThreshold, cfg.Preprocess.AreaThreshold)
	assert.Equal(t, output.DefaultViewport(), cfg.Render.Viewport())
	assert.Equal(t, output.DefaultStyle(), cfg.Render.Style())
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 30*time.Second, cfg.Sync.Cooldown)
}

func TestLoadEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("TRAVELMAP_PROJECTION_PIPELINE", "mollweide | resize:2")
	t.Setenv("TRAVELMAP_PROJECTION_POLICY", "strict")
	t.Setenv("TRAVELMAP_SERVER_PORT", "9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mollweide | resize:2", cfg.Projection.Pipeline)
	assert.Equal(t, projection.PolicyStrict, cfg.Projection.Solver().Policy)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "travelmap.yaml")
	data := []byte(`
render:
  format: braille
  width: 80
  height: 24
  view_box: [-3.5, -2, 7, 4]
preprocess:
  exclude_polar: true
  dateline_region: []
cache:
  type: none
source:
  layers:
    - postgres://gis@db/world?table=public.countries
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "braille", cfg.Render.Format)
	assert.Equal(t, output.Viewport{Width: 80, Height: 24, ViewBox: output.ViewBox{MinX: -3.5, MinY: -2, Width: 7, Height: 4}}, cfg.Render.Viewport())
	assert.True(t, cfg.Preprocess.ExcludePolar)
	assert.Equal(t, "none", cfg.Cache.Type)
	assert.Equal(t, []string{"postgres://gis@db/world?table=public.countries"}, cfg.Source.Layers)

	p := preprocess.New(cfg.Preprocess.Options()...)
	assert.True(t, p.Dateline.IsZero())
	assert.Equal(t, preprocess.DefaultPolarRegion, p.Polar)
}

func TestLoadMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Projection.Pipeline = "mercator"
	cfg.Server.Port = 0
	cfg.Storage.Type = "ftp"
	cfg.Render.ViewBox = []float64{0, 0, 0, 1}
	cfg.Preprocess.PolarRegion = []float64{1, 2}
	cfg.Source.Layers = []string{"coast.shp", " "}

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))

	var fields []string
	for _, e := range merr.Errors {
		var ce *domain.ConfigError
		require.True(t, errors.As(e, &ce), "unexpected error %v", e)
		fields = append(fields, ce.Field)
	}
	assert.ElementsMatch(t, []string{
		"projection.pipeline",
		"server.port",
		"storage.type",
		"render.view_box",
		"preprocess.polar_region",
		"source.layers[1]",
	}, fields)
	assert.ErrorIs(t, err, domain.ErrProjectionNotFound)
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		wantErr bool
	}{
		{"local", StorageConfig{Type: "local", LocalPath: "./data"}, false},
		{"local without path", StorageConfig{Type: "local"}, true},
		{"s3", StorageConfig{Type: "s3", S3: S3Config{Bucket: "maps", Region: "eu-central-1"}}, false},
		{"s3 without region", StorageConfig{Type: "s3", S3: S3Config{Bucket: "maps"}}, true},
		{"azure connection string", StorageConfig{Type: "azure", Azure: AzureConfig{Container: "maps", ConnectionString: "x"}}, false},
		{"azure without account", StorageConfig{Type: "azure", Azure: AzureConfig{Container: "maps"}}, true},
		{"http", StorageConfig{Type: "http", HTTP: HTTPConfig{BaseURL: "https://example.com/maps"}}, false},
		{"http without url", StorageConfig{Type: "http"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			cfg.Storage = tt.storage
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTLSAndCache(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.TLS.Enabled = true
	cfg.Cache.Type = "memcached"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls.domains")
	assert.Contains(t, err.Error(), "tls.email")
	assert.Contains(t, err.Error(), "cache.type")
}

func TestCORSConfigEnabled(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		want    bool
	}{
		{"nil", nil, false},
		{"empty", []string{}, false},
		{"one origin", []string{"https://example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CORSConfig{AllowedOrigins: tt.origins}
			if got := c.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectionSolver(t *testing.T) {
	s := ProjectionConfig{MaxIterations: 50, Tolerance: 1e-9, Policy: "best_effort"}.Solver()
	assert.Equal(t, 50, s.MaxIterations)
	assert.Equal(t, 1e-9, s.Tolerance)
	assert.Equal(t, projection.PolicyBestEffort, s.Policy)
}
