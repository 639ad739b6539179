// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/preprocess"
	"github.com/jobrunner/travelmap/internal/projection"
)

// EnvPrefix is the prefix of environment variables, e.g.
// TRAVELMAP_PROJECTION_PIPELINE.
const EnvPrefix = "TRAVELMAP"

// Config holds all application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Source     SourceConfig     `mapstructure:"source"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Render     RenderConfig     `mapstructure:"render"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	TLS        TLSConfig        `mapstructure:"tls"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Watch      WatchConfig      `mapstructure:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// SourceConfig lists layers loaded at startup in addition to the files in
// storage, e.g. PostGIS tables given as
// postgres://user@host/db?table=public.countries.
type SourceConfig struct {
	Layers []string `mapstructure:"layers"`
}

// ProjectionConfig selects the default pipeline and the solver settings.
type ProjectionConfig struct {
	Pipeline      string  `mapstructure:"pipeline"` // e.g. "naturalearth2 | rotate:45"
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
	Policy        string  `mapstructure:"policy"` // best_effort, strict
}

// Solver returns the configured Newton-Raphson solver.
func (c ProjectionConfig) Solver() projection.Solver {
	return projection.Solver{
		MaxIterations: c.MaxIterations,
		Tolerance:     c.Tolerance,
		Policy:        projection.ParsePolicy(c.Policy),
	}
}

// PreprocessConfig holds the shape preprocessor settings. Regions are
// [min_lon, min_lat, max_lon, max_lat]; an empty list disables the region.
type PreprocessConfig struct {
	AreaThreshold  float64   `mapstructure:"area_threshold"`
	DatelineRegion []float64 `mapstructure:"dateline_region"`
	PolarRegion    []float64 `mapstructure:"polar_region"`
	ExcludePolar   bool      `mapstructure:"exclude_polar"`
}

// Options returns the preprocessor options for this configuration.
func (c PreprocessConfig) Options() []preprocess.Option {
	return []preprocess.Option{
		preprocess.WithAreaThreshold(c.AreaThreshold),
		preprocess.WithDatelineRegion(region(preprocess.DefaultDatelineRegion.Name, c.DatelineRegion)),
		preprocess.WithPolarRegion(region(preprocess.DefaultPolarRegion.Name, c.PolarRegion)),
		preprocess.WithExcludePolar(c.ExcludePolar),
	}
}

func region(name string, b []float64) preprocess.Region {
	if len(b) != 4 {
		return preprocess.Region{}
	}
	return preprocess.Region{
		Name:  name,
		Bound: domain.BBox{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]},
	}
}

// RenderConfig holds output settings.
type RenderConfig struct {
	Format      string    `mapstructure:"format"` // svg, braille
	Width       int       `mapstructure:"width"`
	Height      int       `mapstructure:"height"`
	ViewBox     []float64 `mapstructure:"view_box"` // min_x, min_y, width, height
	Stroke      string    `mapstructure:"stroke"`
	StrokeWidth string    `mapstructure:"stroke_width"`
	Fill        string    `mapstructure:"fill"`
	Workers     int       `mapstructure:"workers"` // 0 uses GOMAXPROCS
	Colour      bool      `mapstructure:"colour"`  // ANSI colours in braille output
}

// Viewport returns the output image size and planar window.
func (c RenderConfig) Viewport() output.Viewport {
	vp := output.DefaultViewport()
	if c.Width > 0 && c.Height > 0 {
		vp.Width, vp.Height = c.Width, c.Height
	}
	if len(c.ViewBox) == 4 {
		vp.ViewBox = output.ViewBox{MinX: c.ViewBox[0], MinY: c.ViewBox[1], Width: c.ViewBox[2], Height: c.ViewBox[3]}
	}
	return vp
}

// Style returns the default group style.
func (c RenderConfig) Style() output.Style {
	return output.Style{Stroke: c.Stroke, StrokeWidth: c.StrokeWidth, Fill: c.Fill}
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds the Azure DNS zone used for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration. Metrics are
// served on their own port.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// CacheConfig selects the render cache.
type CacheConfig struct {
	Type  string        `mapstructure:"type"` // none, lru, redis
	Size  int           `mapstructure:"size"` // lru entries
	TTL   time.Duration `mapstructure:"ttl"`
	Redis RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection of the render cache.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SyncConfig holds remote storage synchronization settings.
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// WatchConfig holds local hot-reload settings.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults sets the default configuration values.
func Defaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Projection defaults
	viper.SetDefault("projection.pipeline", "naturalearth2 | rotate:45")
	viper.SetDefault("projection.max_iterations", projection.DefaultMaxIterations)
	viper.SetDefault("projection.tolerance", projection.DefaultTolerance)
	viper.SetDefault("projection.policy", projection.PolicyBestEffort.String())

	// Preprocess defaults
	dl := preprocess.DefaultDatelineRegion.Bound
	polar := preprocess.DefaultPolarRegion.Bound
	viper.SetDefault("preprocess.area_threshold", preprocess.DefaultAreaThreshold)
	viper.SetDefault("preprocess.dateline_region", []float64{dl.MinX, dl.MinY, dl.MaxX, dl.MaxY})
	viper.SetDefault("preprocess.polar_region", []float64{polar.MinX, polar.MinY, polar.MaxX, polar.MaxY})
	viper.SetDefault("preprocess.exclude_polar", false)

	// Render defaults
	vp := output.DefaultViewport()
	style := output.DefaultStyle()
	viper.SetDefault("render.format", "svg")
	viper.SetDefault("render.width", vp.Width)
	viper.SetDefault("render.height", vp.Height)
	viper.SetDefault("render.view_box", []float64{vp.ViewBox.MinX, vp.ViewBox.MinY, vp.ViewBox.Width, vp.ViewBox.Height})
	viper.SetDefault("render.stroke", style.Stroke)
	viper.SetDefault("render.stroke_width", style.StrokeWidth)
	viper.SetDefault("render.fill", style.Fill)
	viper.SetDefault("render.workers", 0)
	viper.SetDefault("render.colour", true)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Cache defaults
	viper.SetDefault("cache.type", "lru")
	viper.SetDefault("cache.size", 128)
	viper.SetDefault("cache.ttl", 10*time.Minute)
	viper.SetDefault("cache.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("cache.redis.key_prefix", "travelmap:")

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.interval", 15*time.Minute)
	viper.SetDefault("sync.cooldown", 30*time.Second)

	// Watch defaults
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/travelmap")
	}

	// The config file is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error
	fail := func(field, format string, args ...any) {
		result = multierror.Append(result, &domain.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		fail("logging.format", "unknown format %q", c.Logging.Format)
	}

	for i, layer := range c.Source.Layers {
		if strings.TrimSpace(layer) == "" {
			fail(fmt.Sprintf("source.layers[%d]", i), "empty layer source")
		}
	}

	if _, err := projection.Parse(c.Projection.Pipeline); err != nil {
		result = multierror.Append(result, &domain.ConfigError{Field: "projection.pipeline", Message: "invalid pipeline", Err: err})
	}
	if c.Projection.MaxIterations < 1 {
		fail("projection.max_iterations", "must be positive, got %d", c.Projection.MaxIterations)
	}
	if c.Projection.Tolerance <= 0 {
		fail("projection.tolerance", "must be positive, got %g", c.Projection.Tolerance)
	}
	switch c.Projection.Policy {
	case "best_effort", "strict":
	default:
		fail("projection.policy", "unknown policy %q", c.Projection.Policy)
	}

	if c.Preprocess.AreaThreshold < 0 {
		fail("preprocess.area_threshold", "must not be negative, got %g", c.Preprocess.AreaThreshold)
	}
	for field, b := range map[string][]float64{
		"preprocess.dateline_region": c.Preprocess.DatelineRegion,
		"preprocess.polar_region":    c.Preprocess.PolarRegion,
	} {
		if len(b) != 0 && len(b) != 4 {
			fail(field, "needs 4 values (min_lon, min_lat, max_lon, max_lat), got %d", len(b))
		}
	}

	switch c.Render.Format {
	case "svg", "braille":
	default:
		fail("render.format", "unknown format %q", c.Render.Format)
	}
	if c.Render.Width < 1 || c.Render.Height < 1 {
		fail("render.width", "image size must be positive, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if len(c.Render.ViewBox) != 4 {
		fail("render.view_box", "needs 4 values (min_x, min_y, width, height), got %d", len(c.Render.ViewBox))
	} else if c.Render.ViewBox[2] <= 0 || c.Render.ViewBox[3] <= 0 {
		fail("render.view_box", "width and height must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		fail("server.port", "invalid port %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		fail("metrics.port", "invalid port %d", c.Metrics.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			fail("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			fail("tls.email", "TLS enabled but no email specified")
		}
	}

	c.validateStorage(fail)

	switch c.Cache.Type {
	case "none", "":
	case "lru":
		if c.Cache.Size < 1 {
			fail("cache.size", "must be positive, got %d", c.Cache.Size)
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			fail("cache.redis.addr", "redis address is required")
		}
	default:
		fail("cache.type", "unknown cache type %q", c.Cache.Type)
	}

	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		fail("sync.interval", "must be positive when sync is enabled")
	}

	return result.ErrorOrNil()
}

func (c *Config) validateStorage(fail func(field, format string, args ...any)) {
	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			fail("storage.local_path", "local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			fail("storage.s3.bucket", "S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			fail("storage.s3.region", "S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			fail("storage.azure.container", "azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			fail("storage.azure.account_name", "azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			fail("storage.http.base_url", "HTTP base URL is required")
		}
	default:
		fail("storage.type", "unknown storage type %q", c.Storage.Type)
	}
}
