package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"schoolpulse/internal/config"
	apierrors "schoolpulse/internal/errors"
	"schoolpulse/internal/infrastructure"
	customMiddleware "schoolpulse/internal/middleware"
	"schoolpulse/internal/services"
	"schoolpulse/internal/sources/gsheets"
	"schoolpulse/internal/store"
	handlers "schoolpulse/internal/transport/http"
	ws "schoolpulse/internal/websocket"
	"schoolpulse/pkg/contracts"
	"schoolpulse/pkg/contracts/domain"
)

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Store     store.Store
	Catalog   *services.CatalogService
	Health    *services.HealthService
	Hub       *ws.Hub
	Router    *chi.Mux
	Server    *http.Server
}

// NewApplication wires every component from cfg. Nothing is started until Run or Serve.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("store_driver", cfg.Store.Driver),
		slog.Bool("sheets_enabled", cfg.Sheets.Enabled))

	tel, err := infrastructure.InitializeTelemetry(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
	}

	if err := a.initializeServices(ctx); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.setupRouter(); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	a.createServer()
	return a, nil
}

// initializeServices opens the store and builds the services in dependency order
func (a *Application) initializeServices(ctx context.Context) error {
	st, err := store.Open(a.Config.Store.Driver, a.Config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.Config.Store.Driver, err)
	}
	a.Store = st

	wsMetrics, err := ws.NewMetrics(a.Telemetry.Meter)
	if err != nil {
		return err
	}
	a.Hub = ws.NewHub(a.Logger, wsMetrics)

	catalogMetrics, err := infrastructure.NewCatalogMetrics(a.Telemetry.Meter)
	if err != nil {
		return err
	}

	opts := []services.CatalogOption{
		services.WithNotifier(a.Hub),
		services.WithTelemetry(a.Telemetry.Tracer, catalogMetrics),
	}

	if a.Config.Sheets.Enabled {
		src, err := gsheets.New(ctx, a.Config.Sheets.CredentialsFile, nil, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize google sheets source: %w", err)
		}
		opts = append(opts, services.WithSheetsSource(timeoutSource{src: src, timeout: a.Config.Sheets.Timeout}))
	}

	a.Catalog = services.NewCatalogService(st, a.Logger, opts...)
	a.Health = services.NewHealthService(a.Catalog, st, a.Hub, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// The WebSocket upgrade needs the raw ResponseWriter, so it stays outside the wrapping middleware
	r.Method(http.MethodGet, config.WebSocketEndpoint,
		ws.NewHandler(a.Hub, a.Config.WebSocket, a.Config.Server.AllowedOrigins, a.Logger))

	// Scrapes are not traced or logged
	r.Method(http.MethodGet, config.MetricsEndpoint, handlers.NewMetricsHandler(a.Telemetry.MetricsHandler))

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.Telemetry)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.StructuredLogger(a.Logger))
			r.Get(config.HealthEndpoint, healthHandler.HealthCheck)
			r.Get(config.HealthEndpoint+"/ready", healthHandler.ReadinessCheck)
			r.Get(config.HealthEndpoint+"/live", healthHandler.LivenessCheck)
			r.Get(config.VersionEndpoint, healthHandler.Version)
		})

		r.Route(config.APIBasePath, func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(apierrors.NewErrorMiddleware(errorHandler, a.Logger).Handler)

			catalogHandler := handlers.NewCatalogHandler(
				a.Catalog,
				customMiddleware.NewValidator(),
				errorHandler,
				a.Config.Upload.MaxBytes,
				a.Logger,
			)
			uploadLimiter := customMiddleware.NewRateLimiter(a.Config.Upload.RPS, a.Config.Upload.Burst, a.Logger)
			r.Mount("/catalog", catalogHandler.Routes(uploadLimiter.Handler))
		})
	})

	a.Router = r
	return nil
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader},
		MaxAge:         300,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run listens on the configured address and serves until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve restores the persisted catalog, then serves on ln until ctx is
// cancelled or the server fails. Shutdown drains requests before the hub,
// telemetry and store are closed.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if a.Config.Store.RestoreOnStart {
		a.restore(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "http server listening", slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	a.Logger.Info("application shutdown complete")
	return err
}

// restore never fails startup: a missing or corrupt snapshot leaves the catalog empty
func (a *Application) restore(ctx context.Context) {
	report, restored, err := a.Catalog.Restore(ctx)
	switch {
	case err != nil:
		a.Logger.WarnContext(ctx, "snapshot restore failed, starting with an empty catalog",
			slog.String("error", err.Error()))
	case restored:
		a.Logger.InfoContext(ctx, "snapshot restored",
			slog.String("source", report.Source),
			slog.Int("entities", report.Entities))
	}
}

func (a *Application) shutdown() error {
	a.Logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.Hub.Stop()

	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if closer, ok := a.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// timeoutSource bounds every spreadsheet fetch
type timeoutSource struct {
	src     services.WorkbookSource
	timeout time.Duration
}

func (t timeoutSource) Fetch(ctx context.Context, spreadsheetID string) (domain.Workbook, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.src.Fetch(ctx, spreadsheetID)
}
