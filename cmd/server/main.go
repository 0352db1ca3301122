package main

import (
	"context"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/erp/billing/internal/application/billing"
	eventapp "github.com/erp/billing/internal/application/event"
	financeapp "github.com/erp/billing/internal/application/finance"
	notificationapp "github.com/erp/billing/internal/application/notification"
	printingapp "github.com/erp/billing/internal/application/printing"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/finance"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/cache"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/event"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/notification"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/infrastructure/printing"
	"github.com/erp/billing/internal/infrastructure/storage"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/erp/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Billing API
//	@version		1.0
//	@description	Multi-tenant billing and payment reconciliation
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
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
		_ = logger.Sync(log)
	}()

	if err := shared.InitSequence(cfg.App.NodeID); err != nil {
		log.Fatal("Failed to initialize sequence generator", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers. Disabled providers install nothing and the
	// global no-op implementations stay in place.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogExportEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		log = loggerProvider.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	}
	meter := meterProvider.Meter("billing")

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", tracerProvider.IsEnabled()),
	)

	// Database with a zap-backed gorm logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabase(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		if err := telemetry.RegisterDBTracing(db.DB, tracingCfg, log); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, meter, cfg.Telemetry.MetricsInterval, log)
		if err != nil {
			log.Warn("Database metrics disabled", zap.Error(err))
		} else {
			defer dbMetrics.Stop()
		}
	}

	// Idempotency store backs both the request guard and the event handlers
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Host != "" {
		idempotencyStore, err = cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
	} else {
		idempotencyStore = cache.NewInMemoryIdempotencyStore(0)
	}
	if closer, ok := idempotencyStore.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	// Outbox: events are written inside the business transaction and
	// forwarded to the bus once committed
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	eventSerializer := event.NewEventSerializer()
	event.RegisterBillingEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	partyReader := persistence.NewGormPartyReader(db.DB)
	itemReader := persistence.NewGormItemReader(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB,
		persistence.WithOutboxEventSaver(outboxPublisher),
		persistence.WithLockTimeout(cfg.Database.LockTimeout),
	)

	var billingMetrics *telemetry.BillingMetrics
	if meterProvider.IsEnabled() {
		billingMetrics, err = telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
			Meter:       meter,
			Logger:      log,
			Receivables: telemetry.NewGormReceivablesProvider(db.DB),
		})
		if err != nil {
			log.Warn("Billing metrics disabled", zap.Error(err))
		} else {
			billingMetrics.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), cfg.Telemetry.MetricsInterval)
			defer billingMetrics.Stop()
		}
	}

	// Application services
	documentOpts := []billingapp.DocumentServiceOption{
		billingapp.WithSettings(billingapp.Settings{
			HomeJurisdiction: cfg.Billing.HomeJurisdiction,
			CessEnabled:      cfg.Billing.CessEnabled,
		}),
		billingapp.WithMetrics(billingMetrics),
		billingapp.WithLogger(log.Named("documents")),
	}
	paymentOpts := []financeapp.PaymentServiceOption{
		financeapp.WithAllocationLimit(cfg.Billing.MaxAllocationsPerCall),
		financeapp.WithMetrics(billingMetrics),
		financeapp.WithLogger(log.Named("payments")),
	}
	if cfg.Idempotency.Enabled {
		guard := billingapp.NewRequestGuard(idempotencyStore, cfg.Idempotency.TTL, log)
		documentOpts = append(documentOpts, billingapp.WithRequestGuard(guard))
		paymentOpts = append(paymentOpts, financeapp.WithRequestGuard(guard))
	}
	documentService := billingapp.NewDocumentService(txScope, documentRepo, itemReader, partyReader, documentOpts...)
	paymentService := financeapp.NewPaymentService(txScope, paymentRepo, partyReader,
		finance.NewDistributionService(finance.WithAllocationPolicy(billing.AllocationPolicy{
			LockSettled: cfg.Billing.LockSettledDocuments,
		})),
		paymentOpts...)
	ledgerService := financeapp.NewLedgerService(txScope, ledgerRepo, partyReader, log.Named("ledger"))
	outboxService := eventapp.NewOutboxService(outboxRepo, log.Named("outbox"))

	printOpts := []printingapp.Option{}
	if cfg.Storage.Enabled() {
		archive, err := storage.NewS3DocumentArchive(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize document archive", zap.Error(err))
		}
		printOpts = append(printOpts, printingapp.WithArchive(archive, 0))
	}
	printService := printingapp.NewService(documentRepo, partyReader,
		printing.NewPDFRenderer(printing.WithCreator(cfg.App.Name)), log.Named("printing"), printOpts...)

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.SMTP.Enabled() {
		mailer, err := notification.NewSMTPMailer(cfg.SMTP, log)
		if err != nil {
			log.Fatal("Failed to initialize mailer", zap.Error(err))
		}
		notifier := notificationapp.NewDocumentIssuedNotifier(printService, partyReader, mailer, log.Named("notifier"))
		eventBus.Subscribe(event.NewIdempotentHandler(notifier, idempotencyStore, shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: true,
		}, log))
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		processorCfg.CleanupRetention = cfg.Event.CleanupRetention
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, processorCfg, log,
			event.WithOutboxMeter(meter))
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Order matters: the request id must exist before the logger and tracer
	// read it, and recovery must wrap everything after it.
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, tracerProvider.IsEnabled()),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
			MaxAge:       12 * time.Hour,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)
	if meterProvider.IsEnabled() {
		httpMetrics, err := middleware.HTTPMetrics(meter)
		if err != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		} else {
			engine.Use(httpMetrics)
		}
	}

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if pinger, ok := idempotencyStore.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = pinger.Ping
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)
	pageSize := handler.WithDefaultPageSize(cfg.Billing.DefaultPageSize)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/system/info", systemHandler.GetSystemInfo)

	verifier := auth.NewTokenVerifier(cfg.JWT)
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(middleware.Authenticate(middleware.AuthConfig{
			Verifier: verifier,
			Logger:   log,
		})),
	)
	r.Register(router.NewBillingGroup(router.BillingHandlers{
		Documents: handler.NewDocumentHandler(documentService, printService, pageSize),
		Payments:  handler.NewPaymentHandler(paymentService, pageSize),
		Ledger:    handler.NewLedgerHandler(ledgerService),
		Outbox:    handler.NewOutboxHandler(outboxService, pageSize),
	}))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logs":   loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited")
}
