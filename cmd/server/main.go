package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	printingapp "github.com/crosswms/loadorder/internal/application/printing"
	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/crosswms/loadorder/internal/infrastructure/barcode"
	"github.com/crosswms/loadorder/internal/infrastructure/cache"
	"github.com/crosswms/loadorder/internal/infrastructure/config"
	"github.com/crosswms/loadorder/internal/infrastructure/logger"
	infra "github.com/crosswms/loadorder/internal/infrastructure/printing"
	"github.com/crosswms/loadorder/internal/infrastructure/scheduler"
	"github.com/crosswms/loadorder/internal/infrastructure/storage"
	"github.com/crosswms/loadorder/internal/infrastructure/telemetry"
	"github.com/crosswms/loadorder/internal/interfaces/http/handler"
	"github.com/crosswms/loadorder/internal/interfaces/http/middleware"
	"github.com/crosswms/loadorder/internal/interfaces/http/router"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting loading order print service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		Tracing:           cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.MetricsEnabled,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
	}, logger.Component(log, "telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Dialog sessions
	sessions, err := cache.NewSessionStoreFactory(cfg.Redis,
		cache.WithLogger(logger.Component(log, "sessions")),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create session store", zap.Error(err))
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Error("Error closing session store", zap.Error(err))
		}
	}()

	// Layout rendering
	templates, err := infra.NewTemplateStore(&infra.TemplateStoreConfig{ExternalDir: cfg.Print.TemplateDir})
	if err != nil {
		log.Fatal("Failed to load print layouts", zap.Error(err))
	}
	loc := cfg.Print.Location()
	encoder := barcode.NewEncoder(barcode.Options{
		ModuleWidth: cfg.Print.BarcodeModuleWidth,
		Height:      cfg.Print.BarcodeHeight,
		Margin:      cfg.Print.BarcodeMargin,
		Supersample: cfg.Print.BarcodeSupersample,
	}, logger.Component(log, "barcode"))
	renderer := infra.NewLayoutRenderer(templates, infra.NewTemplateEngine(infra.WithLocation(loc)), encoder,
		infra.WithSystemName(cfg.Print.SystemName),
		infra.WithRendererLogger(logger.Component(log, "renderer")),
	)

	// Print orchestration
	printOptions := infra.PrintOptions{
		PaperSize:   printing.PaperSize(cfg.Print.PaperSize),
		Orientation: printing.Orientation(cfg.Print.Orientation),
		Margins: printing.Margins{
			Top:    cfg.Print.MarginTop,
			Right:  cfg.Print.MarginRight,
			Bottom: cfg.Print.MarginBottom,
			Left:   cfg.Print.MarginLeft,
		},
		Scale:           cfg.Print.Scale,
		PrintBackground: true,
	}
	opener := infra.NewChromedpContextOpener(&infra.ChromedpConfig{
		DefaultTimeout: cfg.Chrome.Timeout,
		RemoteURL:      cfg.Chrome.RemoteURL,
		NoSandbox:      cfg.Chrome.NoSandbox,
		MaxContexts:    cfg.Chrome.MaxContexts,
		Logger:         logger.Component(log, "chromedp"),
	})
	defer func() {
		if err := opener.Close(); err != nil {
			log.Error("Error closing browser", zap.Error(err))
		}
	}()
	orchestrator := infra.NewPrintOrchestrator(opener, templates, infra.OrchestratorConfig{
		GracePeriod:     cfg.Print.GracePeriod,
		FallbackTimeout: cfg.Print.FallbackTimeout,
		CloseDelay:      cfg.Print.CloseDelay,
		Options:         printOptions,
	}, logger.Component(log, "orchestrator"),
		infra.WithTracer(providers.Tracer()),
		infra.WithMeter(providers.Meter()),
	)
	defer orchestrator.Shutdown()

	dialogMetrics, err := telemetry.NewDialogMetrics(providers.Meter())
	if err != nil {
		log.Fatal("Failed to register dialog metrics", zap.Error(err))
	}

	serviceOpts := []printingapp.DialogServiceOption{
		printingapp.WithPageCounter(infra.NewPDFInspector(logger.Component(log, "pdf"))),
		printingapp.WithExporter(infra.NewXLSXExporter(loc, logger.Component(log, "export"))),
		printingapp.WithMetrics(dialogMetrics),
		printingapp.WithPrintOptions(printOptions),
	}
	spooler, err := newSpooler(cfg, logger.Component(log, "spool"))
	if err != nil {
		log.Fatal("Failed to initialize spooler", zap.Error(err))
	}
	if spooler != nil {
		serviceOpts = append(serviceOpts, printingapp.WithSpooler(spooler))
	}

	dialogService := printingapp.NewDialogService(
		sessions,
		infra.NewRecordNormalizer(logger.Component(log, "normalizer")),
		renderer,
		orchestrator,
		logger.Component(log, "dialogs"),
		serviceOpts...,
	)

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.Telemetry.ServiceName, Enabled: cfg.Telemetry.Enabled}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{Meter: providers.Meter(), Enabled: providers.MetricsExported()}),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		WithCheck("sessions", sessionProbe(sessions))

	r := router.NewRouter(engine)
	printRoutes := handler.PrintRoutes(handler.NewPrintHandler(dialogService))
	r.Register(printRoutes).Register(handler.SystemRoutes(systemHandler))
	r.Setup()
	engine.GET("/health", systemHandler.Health)

	for _, route := range printRoutes.Routes(router.BasePath) {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	var cleanup *scheduler.SpoolCleanupScheduler
	if spooler != nil {
		cleanup = scheduler.NewSpoolCleanupScheduler(scheduler.SpoolCleanupConfig{
			Retention: cfg.Spool.Retention,
			Interval:  cfg.Spool.CleanupInterval,
		}, spooler, logger.Component(log, "spool"))
		if err := cleanup.Start(ctx); err != nil {
			log.Fatal("Failed to start spool cleanup", zap.Error(err))
		}
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cleanup != nil {
		if err := cleanup.Stop(shutdownCtx); err != nil {
			log.Warn("Spool cleanup did not stop in time", zap.Error(err))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newSpooler returns nil when spooling is disabled
func newSpooler(cfg *config.Config, log *zap.Logger) (infra.Spooler, error) {
	switch cfg.Spool.Backend {
	case "filesystem":
		s, err := infra.NewFileSystemSpooler(&infra.FileSystemSpoolerConfig{
			BasePath: cfg.Spool.BasePath,
			BaseURL:  cfg.Spool.BaseURL,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := storage.NewS3Spooler(&cfg.S3, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

// sessionProbe looks up a random dialog; anything but not-found means the
// session backend is unreachable
func sessionProbe(sessions cache.SessionStore) handler.HealthCheck {
	return func(ctx context.Context) error {
		_, err := sessions.FindByID(ctx, uuid.New())
		if err == nil || errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
