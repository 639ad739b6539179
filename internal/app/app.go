// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jobrunner/travelmap/internal/adapters/cache"
	httpAdapter "github.com/jobrunner/travelmap/internal/adapters/http"
	"github.com/jobrunner/travelmap/internal/adapters/metrics"
	"github.com/jobrunner/travelmap/internal/adapters/render"
	"github.com/jobrunner/travelmap/internal/adapters/source"
	"github.com/jobrunner/travelmap/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/travelmap/internal/adapters/tls"
	"github.com/jobrunner/travelmap/internal/adapters/watcher"
	"github.com/jobrunner/travelmap/internal/application"
	"github.com/jobrunner/travelmap/internal/config"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/preprocess"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Storage       output.ObjectStorage
	Cache         output.RenderCache
	Registry      *application.LayerRegistry
	Engine        *Engine
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// Engine bundles the services that draw maps. The command line uses it
// without a server.
type Engine struct {
	Opener      *source.Opener
	Projections *application.ProjectionService
	Maps        *application.MapService
	Canvases    output.CanvasFactory
}

// NewEngine builds the drawing services. registry and renderCache may be
// nil when only Draw is used.
func NewEngine(
	cfg *config.Config,
	registry *application.LayerRegistry,
	renderCache output.RenderCache,
	collector output.MetricsCollector,
	logger *slog.Logger,
) (*Engine, error) {
	canvases, err := canvasFactory(cfg.Render)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = &output.NoOpMetrics{}
	}

	projections := application.NewProjectionService(cfg.Projection.Pipeline, cfg.Projection.Solver(), collector, logger)
	// Reject a broken default pipeline at startup rather than per request.
	if _, err := projections.Build(cfg.Projection.Pipeline); err != nil {
		return nil, fmt.Errorf("default projection: %w", err)
	}

	maps := application.NewMapService(
		registry,
		projections,
		preprocess.New(cfg.Preprocess.Options()...),
		canvases,
		renderCache,
		collector,
		logger,
		application.MapServiceConfig{
			Workers:  cfg.Render.Workers,
			Viewport: cfg.Render.Viewport(),
			Style:    cfg.Render.Style(),
			CacheTTL: cfg.Cache.TTL,
		},
	)

	return &Engine{
		Opener:      source.NewOpener(logger),
		Projections: projections,
		Maps:        maps,
		Canvases:    canvases,
	}, nil
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var collector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("travelmap", nil)
		app.MetricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, app.Metrics.Handler(), logger)
		collector = app.Metrics
	}

	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	renderCache, err := initCache(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	app.Cache = renderCache

	app.Registry = application.NewLayerRegistry(
		source.NewOpener(logger),
		app.Storage,
		collector,
		logger,
		cfg.Storage.LocalPath,
	)

	app.Engine, err = NewEngine(cfg, app.Registry, app.Cache, collector, logger)
	if err != nil {
		return nil, err
	}
	app.Registry.OnChange(func(layerID string) {
		app.Engine.Maps.InvalidateCache(context.Background(), layerID)
	})

	app.HealthService = application.NewHealthService(app.Registry)

	opts := []httpAdapter.Option{}
	if app.Metrics != nil {
		opts = append(opts, httpAdapter.WithMiddleware(app.Metrics.Middleware))
	}
	if cfg.Sync.Enabled && cfg.Storage.Type != "local" {
		app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger)
		app.SyncService.SetCooldown(cfg.Sync.Cooldown)
		opts = append(opts, httpAdapter.WithSync(app.SyncService))
	}

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.Engine.Maps,
		app.Engine.Projections,
		app.Registry,
		app.HealthService,
		logger,
		opts...,
	)

	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			cfg.Server.Address(),
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Hot-reload only applies to layers stored on the local disk.
	if cfg.Storage.Type == "local" && cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Storage.LocalPath},
				Debounce: cfg.Watch.Debounce,
				Filter:   storage.IsLayerFile,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start loads the layers and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load layers", "error", err)
	}
	for _, dsn := range a.Config.Source.Layers {
		if err := a.Registry.LoadLayer(ctx, dsn); err != nil {
			a.Logger.Warn("failed to load configured layer", "layer", application.DeriveLayerID(dsn), "error", err)
		}
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}

	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		return a.TLSServer.ListenAndServe()
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	layers, _ := a.Registry.ListLayers(ctx)
	for _, layer := range layers {
		if err := a.Registry.UnloadLayer(ctx, layer.ID); err != nil {
			a.Logger.Error("failed to unload layer", "id", layer.ID, "error", err)
		}
	}

	if c, ok := a.Cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.Logger.Error("cache close error", "error", err)
		}
	}
	return nil
}

// handleFileEvent handles file system events for hot-reload.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Registry.LoadLayer(ctx, event.Path)

	case watcher.OpDelete:
		if err := a.Registry.UnloadPath(ctx, event.Path); err != nil {
			a.Logger.Warn("failed to unload deleted layer", "path", event.Path, "error", err)
		}
	}
	return nil
}

// canvasFactory selects the output format.
func canvasFactory(cfg config.RenderConfig) (output.CanvasFactory, error) {
	switch cfg.Format {
	case "", "svg":
		return render.SVGFactory{}, nil
	case "braille":
		return render.BrailleFactory{Colour: cfg.Colour}, nil
	default:
		return nil, fmt.Errorf("unknown render format: %s", cfg.Format)
	}
}

// initCache initializes the render cache.
func initCache(ctx context.Context, cfg config.CacheConfig) (output.RenderCache, error) {
	switch cfg.Type {
	case "", "none":
		return output.NoOpCache{}, nil

	case "lru":
		return cache.NewMemory(cfg.Size, cfg.TTL)

	case "redis":
		return cache.NewRedis(ctx, cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		})

	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
