package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"wqdash/internal/charts"
	"wqdash/internal/config"
	"wqdash/internal/dashboard"
	apierrors "wqdash/internal/errors"
	"wqdash/internal/infrastructure"
	customMiddleware "wqdash/internal/middleware"
	"wqdash/internal/scheduler"
	"wqdash/internal/services"
	handlers "wqdash/internal/transport/http"
	ws "wqdash/internal/websocket"
	"wqdash/pkg/contracts"
	"wqdash/pkg/contracts/domain"
)

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Registry         *prometheus.Registry
	Metrics          *infrastructure.DashboardMetrics
	WebSocketHub     *ws.Hub
	Dashboard        *dashboard.Controller
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	Scheduler        *scheduler.Scheduler
	ErrorHandler     *apierrors.ErrorHandler
}

// NewApplication loads the configuration and logger and wires the
// application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("build_time", contracts.BuildTime))

	paths := cfg.ResolvedPaths()
	paths.LogPathResolution(logger)
	if err := paths.EnsureDirectories(logger); err != nil {
		return nil, err
	}

	return NewApplicationWithConfig(cfg, logger)
}

// NewApplicationWithConfig wires the application from an explicit
// configuration
func NewApplicationWithConfig(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.Registerer = registry
	otelCfg.Gatherer = registry
	otelProviders, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Registry:      registry,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the hub, chart sinks, controller and services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateDashboardMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create dashboard metrics: %w", err)
	}
	a.Metrics = metrics

	wsMetrics, err := ws.NewMetrics(a.Registry)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger, wsMetrics)
	hub.SetKeepAlive(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait)
	a.WebSocketHub = hub

	pngSink, err := charts.NewPNGSink(a.Config.ChartsPath(), a.Config.Dashboard.ChartWidth, a.Config.Dashboard.ChartHeight, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create chart sink: %w", err)
	}
	registry := charts.NewRegistry(charts.MultiSink{charts.NewHubSink(hub), pngSink}, a.Logger)

	defaultRange, err := domain.ParseTimeRange(a.Config.Dashboard.DefaultRange)
	if err != nil {
		return err
	}

	a.Dashboard = dashboard.NewController(dashboard.Options{
		Sources: dashboard.Sources{
			Records:    a.Config.RecordsPath(),
			Statistics: a.Config.StatisticsPath(),
			Summary:    a.Config.SummaryPath(),
		},
		DefaultRange: defaultRange,
		Debounce:     a.Config.Dashboard.RenderDebounce,
		LoadTimeout:  a.Config.Data.LoadTimeout,
		Registry:     registry,
		Metrics:      metrics,
		Logger:       a.Logger,
	})

	a.DashboardService = services.NewDashboardService(a.Dashboard, hub, services.DashboardOptions{
		AssetsDir:   a.Config.AssetsPath(),
		AssetsURL:   "/assets/",
		ChartWidth:  a.Config.Dashboard.ChartWidth,
		ChartHeight: a.Config.Dashboard.ChartHeight,
	}, a.Logger)
	hub.SetCommandHandler(a.DashboardService.HandleCommand)

	a.HealthService = services.NewHealthService(config.AppVersion, contracts.BuildTime, a.Config, a.Dashboard, hub, a.Logger)

	sched, err := scheduler.New(a.Config.Scheduler.ReloadSpec, func(ctx context.Context) error {
		_, err := a.DashboardService.Reload(ctx)
		return err
	}, a.Config.Data.LoadTimeout, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	a.Scheduler = sched

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// The websocket route stays outside the group so that no middleware
	// wraps the ResponseWriter before the upgrade
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(customMiddleware.AuditLog(a.Logger))
		r.Use(customMiddleware.Compress(5, "application/json", "text/html", "text/csv", "text/javascript"))
		r.Use(apierrors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)

		r.NotFound(a.ErrorHandler.NotFound)
		r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

		a.setupAPIRoutes(r)
		a.setupHTMLRoutes(r)
	})

	// Outside the middleware group for performance
	handlers.NewMetricsHandler(a.Registry).Register(r)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	handlers.NewHealthHandler(a.HealthService, a.Logger).Register(r)

	r.Route("/api/v1", func(r chi.Router) {
		dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, a.Logger, a.ErrorHandler)
		r.Mount("/dashboard", dashboardHandler.Routes())
	})
}

// setupHTMLRoutes serves the dashboard page and static images
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/", handlers.ServeIndex(a.DashboardService, a.Logger))
	r.Get("/static/dashboard.js", handlers.ServeScript)
	r.Handle("/assets/*", handlers.ServeAssets("/assets/", a.Config.AssetsPath()))
}

// getCORSConfig returns CORS configuration
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
	if a.Config.Security.EnableCORS {
		cfg.AllowedOrigins = a.Config.Security.AllowedOrigins
	}
	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// InitializeDashboard performs the initial artifact load. A failure
// leaves the dashboard in the failed phase; the server keeps running so
// browsers can show the error.
func (a *Application) InitializeDashboard(ctx context.Context) error {
	err := a.DashboardService.Initialize(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "Initial data load failed",
			slog.String("records", a.Config.RecordsPath()),
			slog.String("error", err.Error()))
	}
	return err
}

// Start starts the background workers, the server and the initial load
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("data_dir", a.Config.GetDataDir()),
		slog.String("records", a.Config.RecordsPath()),
		slog.String("statistics", a.Config.StatisticsPath()),
		slog.String("summary", a.Config.SummaryPath()),
		slog.String("charts_dir", a.Config.ChartsPath()))

	a.WebSocketHub.Start()
	a.Dashboard.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	go func() {
		_ = a.InitializeDashboard(ctx)
	}()

	a.Scheduler.Start()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error stopping scheduler", slog.String("error", err.Error()))
	}
	a.Dashboard.Stop()
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// upgrader returns the websocket upgrader for the configured origins
func (a *Application) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin:     a.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.ErrorHandler.HandleError(w, r, apierrors.WebSocketUpgradeError(status, reason))
		},
	}
}

// checkOrigin allows same-origin requests, requests without an Origin
// header and the configured origins
func (a *Application) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range a.Config.Security.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	a.Logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", a.Config.Security.AllowedOrigins))
	return false
}

// handleWebSocket upgrades the connection and registers a hub client
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := customMiddleware.GetRequestID(ctx)

	upgrader := a.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.WarnContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	client := ws.ServeWS(a.WebSocketHub, conn, reqID, a.Logger)
	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))
}
