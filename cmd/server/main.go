package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
	"github.com/erp/syncengine/internal/infrastructure/auth"
	"github.com/erp/syncengine/internal/infrastructure/cache"
	"github.com/erp/syncengine/internal/infrastructure/config"
	"github.com/erp/syncengine/internal/infrastructure/connector"
	"github.com/erp/syncengine/internal/infrastructure/lock"
	"github.com/erp/syncengine/internal/infrastructure/logger"
	"github.com/erp/syncengine/internal/infrastructure/migration"
	"github.com/erp/syncengine/internal/infrastructure/notify"
	"github.com/erp/syncengine/internal/infrastructure/persistence"
	"github.com/erp/syncengine/internal/infrastructure/scheduler"
	"github.com/erp/syncengine/internal/infrastructure/storage"
	"github.com/erp/syncengine/internal/infrastructure/telemetry"
	"github.com/erp/syncengine/internal/infrastructure/vault"
	"github.com/erp/syncengine/internal/interfaces/http/handler"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
	"github.com/erp/syncengine/internal/interfaces/http/router"
	"github.com/erp/syncengine/migrations"

	_ "github.com/erp/syncengine/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Sync Engine API
//	@version		1.0
//	@description	Synchronizes orders, customers and products between the local store, the storefront, the accounting platform and the analytics warehouse.

//	@contact.name	API Support

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const redisKeyPrefix = "syncengine:"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry. The log bridge needs a logger for its own diagnostics, so the
	// application logger is rebuilt once the provider exists.
	exporter := telemetry.Exporter{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    handler.Version,
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, exporter.Only(cfg.Telemetry.LogsEnabled), log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if logsProvider.IsEnabled() {
		log, err = logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logsProvider,
		}))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Sync Engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Exporter:      exporter,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Exporter:       exporter.Only(cfg.Telemetry.MetricsEnabled),
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}

	// Database
	if cfg.Database.AutoMigrate {
		if err := migrateUp(&cfg.Database, log.Logger); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}
	db, err := persistence.NewDatabase(&cfg.Database, log.Logger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbCfg := telemetry.DefaultDBConfig()
	dbCfg.Tracing = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbCfg.Metrics = meterProvider.IsEnabled()
	dbCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	dbInstrumentation, err := telemetry.InstrumentDB(db.DB, meterProvider.Meter("syncengine.db"), dbCfg, log.Logger)
	if err != nil {
		log.Warn("Database instrumentation unavailable", zap.Error(err))
	} else {
		dbInstrumentation.StartPoolStats(ctx)
	}

	// Redis is optional: without it dedup and run locks stay in-process
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log.Logger)
	defer func() {
		_ = idempotencyStore.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()
	var locker syncapp.SyncLocker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, redisKeyPrefix+"lock:", log.Logger)
	}

	// Repositories
	configRepo := persistence.NewGormConnectorConfigRepository(db.DB)
	fieldMappingRepo := persistence.NewGormFieldMappingRepository(db.DB)
	stateRepo := persistence.NewGormSyncStateRepository(db.DB)
	failedRepo := persistence.NewGormFailedRecordRepository(db.DB)
	conflictRepo := persistence.NewGormSyncConflictRepository(db.DB)
	scheduleRepo := persistence.NewGormSyncScheduleRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	idMappingRepo := persistence.NewGormIDMappingRepository(db.DB)
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)

	// Credential vault
	masterKey := cfg.Vault.MasterKey
	if masterKey == "" {
		masterKey = ephemeralKey()
		log.Warn("vault.master_key not set, using an ephemeral key. Stored credentials will not survive a restart.")
	}
	cipher, err := vault.NewCipherFromBase64(masterKey)
	if err != nil {
		log.Fatal("Failed to initialize credential vault", zap.Error(err))
	}
	credentialVault := vault.NewStore(credentialRepo, cipher, log.Logger)

	// Metrics
	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:           meterProvider.Meter("syncengine"),
		Logger:          log.Logger,
		BacklogProvider: telemetry.NewGormBacklogProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		syncMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}

	// Connectors
	registry, warehouseStore, err := newConnectorRegistry(ctx, cfg, db, credentialVault, syncMetrics, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize connectors", zap.Error(err))
	}
	log.Info("Connectors registered", zap.Any("systems", registry.Systems()))

	// Notifications
	notifiers := []integration.Notifier{notify.NewLogNotifier(log.Logger)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, cfg.Notify.WebhookTimeout, otelClient()))
	}
	notifier := notify.NewMultiNotifier(notifiers...)

	// Worker pool. The orchestrator needs the queue, the queue needs the
	// orchestrator as executor.
	runQueue, err := scheduler.NewRunQueue(scheduler.RunQueueConfig{
		Workers:    cfg.Scheduler.Workers,
		QueueSize:  cfg.Scheduler.QueueSize,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, nil, log.Logger)
	if err != nil {
		log.Fatal("Failed to create run queue", zap.Error(err))
	}

	// Application services
	engine := mapping.NewEngine(nil)
	idMapper := syncapp.NewIDMapper(idMappingRepo, log.Logger)
	orchestrator := syncapp.NewOrchestrator(syncapp.OrchestratorDeps{
		Connectors: registry,
		Configs:    configRepo,
		Mappings:   fieldMappingRepo,
		States:     stateRepo,
		Failures:   failedRepo,
		Conflicts:  conflictRepo,
		IDMapper:   idMapper,
		Resolver:   syncapp.NewDependencyResolver(idMapper, log.Logger),
		Engine:     engine,
		Queue:      runQueue,
		Locker:     locker,
		Notifier:   notifier,
		Metrics:    syncMetrics,
	}, syncapp.OrchestratorConfig{
		Workers:  cfg.Sync.Workers,
		PageSize: cfg.Sync.PageSize,
		LockTTL:  cfg.Sync.LockTTL,
	}, log.Logger)
	runQueue.SetExecutor(orchestrator)

	connectorService := syncapp.NewConnectorService(configRepo, registry, log.Logger)
	credentialService := syncapp.NewCredentialService(credentialVault, log.Logger)
	retryService := syncapp.NewRetryService(failedRepo, orchestrator, log.Logger)
	conflictService := syncapp.NewConflictService(conflictRepo, registry, idMapper, log.Logger)
	mappingService, err := syncapp.NewMappingService(fieldMappingRepo, engine, idMapper, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize mapping service", zap.Error(err))
	}
	scheduleService := syncapp.NewScheduleService(syncapp.ScheduleServiceConfig{
		FailureThreshold:   cfg.Scheduler.FailureThreshold,
		SuspendOnThreshold: cfg.Scheduler.SuspendOnThreshold,
	}, scheduleRepo, configRepo, orchestrator, notifier, log.Logger)
	orchestrator.AddObserver(scheduleService)

	secrets := make(map[integration.SystemCode]string, len(cfg.Webhook.Secrets))
	for platform, secret := range cfg.Webhook.Secrets {
		secrets[integration.SystemCode(platform)] = secret
	}
	webhookService, err := syncapp.NewWebhookService(syncapp.WebhookServiceConfig{
		Secrets:        secrets,
		IdempotencyTTL: cfg.Webhook.IdempotencyTTL,
		NodeID:         cfg.Webhook.NodeID,
	}, configRepo, webhookEventRepo, idempotencyStore, orchestrator, syncMetrics, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize webhook service", zap.Error(err))
	}
	orchestrator.AddObserver(webhookService)

	// Background workers
	if err := runQueue.Start(ctx); err != nil {
		log.Fatal("Failed to start run queue", zap.Error(err))
	}
	if cfg.Sync.RecoverOnStart {
		n, err := orchestrator.RecoverInterrupted(ctx)
		if err != nil {
			log.Error("Failed to recover interrupted runs", zap.Error(err))
		} else if n > 0 {
			log.Info("Re-enqueued interrupted runs", zap.Int("count", n))
		}
	}
	var cronTrigger *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		cronTrigger = scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			TickInterval:  cfg.Scheduler.TickInterval,
			PurgeInterval: cfg.Webhook.PurgeInterval,
		}, scheduleRepo, scheduleService, webhookService, log.Logger)
		if err := cronTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start schedule trigger", zap.Error(err))
		}
	}

	cfg.Watch(func(r config.Reloadable) {
		log.SetLevel(r.LogLevel)
		scheduleService.SetFailurePolicy(r.FailureThreshold, r.SuspendOnThreshold)
		log.Info("Configuration reloaded",
			zap.String("log_level", r.LogLevel),
			zap.Int("failure_threshold", r.FailureThreshold),
		)
	}, func(err error) {
		log.Error("Ignoring invalid configuration change", zap.Error(err))
	})

	// Handlers
	healthChecks := []handler.HealthCheck{{
		Name:  "database",
		Check: db.Ping,
	}}
	if redisClient != nil {
		healthChecks = append(healthChecks, handler.HealthCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Optional: true,
		})
	}
	if warehouseStore != nil {
		healthChecks = append(healthChecks, handler.HealthCheck{
			Name:     "warehouse",
			Check:    warehouseStore.Ping,
			Optional: true,
		})
	}
	handlers := router.Handlers{
		Connectors:  handler.NewConnectorHandler(connectorService),
		Credentials: handler.NewCredentialHandler(credentialService),
		Syncs:       handler.NewSyncHandler(orchestrator, retryService),
		Conflicts:   handler.NewConflictHandler(conflictService),
		Mappings:    handler.NewMappingHandler(mappingService),
		Schedules:   handler.NewScheduleHandler(scheduleService),
		Webhooks:    handler.NewWebhookHandler(webhookService),
		System: handler.NewSystemHandler(
			handler.WithHealthChecks(healthChecks...),
			handler.WithConnectedSystems(func() []string {
				systems := registry.Systems()
				names := make([]string, len(systems))
				for i, s := range systems {
					names[i] = string(s)
				}
				return names
			}),
		),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Register custom validators
	middleware.SetupValidator()

	ginEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	} else if err := ginEngine.SetTrustedProxies(nil); err != nil {
		log.Fatal("Failed to disable trusted proxies", zap.Error(err))
	}

	// Middleware order matters:
	// 1. RequestID - every log line and error carries it
	// 2. Recovery - turns panics into 500s
	// 3. Logger - request logging
	// 4. Tracing and metrics - one span and measurement per request
	// 5. Secure, CORS, BodyLimit
	// API routes additionally run JWT, tenant and rate limiting, see below.
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log.Logger))
	ginEngine.Use(logger.GinMiddleware(log.Logger))
	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName
	tracingConfig.Enabled = tracerProvider.IsEnabled()
	ginEngine.Use(middleware.TracingWithConfig(tracingConfig))
	ginEngine.Use(middleware.SpanErrorMarker())
	ginEngine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       meterProvider.IsEnabled(),
	}))
	ginEngine.Use(middleware.Secure())
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = append(cfg.HTTP.CORSAllowHeaders, "Authorization")
	ginEngine.Use(middleware.CORSWithConfig(corsConfig))
	ginEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	tokenService := auth.NewTokenService(cfg.Auth)
	jwtConfig := middleware.DefaultJWTConfig(tokenService)
	jwtConfig.Optional = cfg.Auth.AllowTenantHeader
	jwtConfig.Logger = log.Logger
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)
	if !tokenService.Enabled() {
		log.Warn("auth.jwt_secret not set, API accepts the X-Tenant-ID header only")
	}

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.HeaderEnabled = cfg.Auth.AllowTenantHeader
	tenantConfig.Logger = log.Logger

	r := router.NewRouter(ginEngine, router.WithAPIVersion("v1"))
	r.Use(jwtMiddleware, middleware.TenantMiddlewareWithConfig(tenantConfig), middleware.TracingAttributeInjector())
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		r.Use(middleware.RateLimitByKey(rateLimiter, func(c *gin.Context) string {
			if tenant := middleware.GetTenantID(c); tenant != "" {
				return "tenant:" + tenant
			}
			return "ip:" + c.ClientIP()
		}))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	router.RegisterPublic(ginEngine, handlers)
	ginEngine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.App.Env == "production" && tokenService.Enabled(),
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)
	for _, group := range router.DomainGroups(handlers) {
		r.Register(group)
	}
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cronTrigger != nil {
		if err := cronTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop schedule trigger", zap.Error(err))
		}
	}
	// Runs still executing are cancelled and re-enqueued by the next start
	if err := runQueue.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop run queue", zap.Error(err))
	}
	stop()
	syncMetrics.Stop()
	if dbInstrumentation != nil {
		dbInstrumentation.Stop()
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logs":   logsProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// migrateUp applies the embedded migrations over a dedicated connection.
// Closing the migrator closes its connection, so it never shares the pool.
func migrateUp(cfg *config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

// newConnectorRegistry registers the local connector and every enabled
// remote platform. The warehouse object store is returned for health checks.
func newConnectorRegistry(
	ctx context.Context,
	cfg *config.Config,
	db *persistence.Database,
	creds integration.CredentialProvider,
	metrics connector.RequestMetrics,
	log *zap.Logger,
) (*connector.Registry, storage.ObjectStore, error) {
	registry := connector.NewRegistry(connector.NewLocal(persistence.NewGormLocalStore(db.DB)))
	retry := connector.RetryPolicy{
		MaxAttempts: cfg.Sync.RetryMaxAttempts,
		BaseDelay:   cfg.Sync.RetryBaseDelay,
		MaxDelay:    cfg.Sync.RetryMaxDelay,
		Jitter:      cfg.Sync.RetryJitter,
	}
	opts := []connector.Option{
		connector.WithHTTPClient(otelClient()),
		connector.WithRequestMetrics(metrics),
		connector.WithConnectorLogger(log),
	}
	httpConfig := func(c config.HTTPClientConfig) connector.HTTPConfig {
		return connector.HTTPConfig{
			BaseURL:   c.BaseURL,
			Timeout:   cfg.Sync.CallTimeout,
			RateLimit: c.RateLimit,
			Burst:     c.Burst,
			Retry:     retry,
			UserAgent: c.UserAgent,
		}
	}

	if sf := cfg.Connectors.Storefront; sf.Enabled {
		c, err := connector.NewStorefront(connector.StorefrontConfig{
			HTTP:            httpConfig(sf.HTTPClientConfig),
			TokenPath:       sf.TokenPath,
			DefaultCurrency: sf.DefaultCurrency,
		}, creds, opts...)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(c)
	}

	if ac := cfg.Connectors.Accounting; ac.Enabled {
		c, err := connector.NewAccounting(connector.AccountingConfig{
			HTTP:             httpConfig(ac.HTTPClientConfig),
			TokenPath:        ac.TokenPath,
			DefaultCurrency:  ac.DefaultCurrency,
			DefaultTaxCode:   ac.DefaultTaxCode,
			ShippingItemCode: ac.ShippingItemCode,
			AssertionTTL:     ac.AssertionTTL,
		}, creds, opts...)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(c)
	}

	var store storage.ObjectStore
	if wh := cfg.Connectors.Warehouse; wh.Enabled {
		s3Store, err := storage.NewS3ObjectStore(&wh.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		store = s3Store
		registry.Register(connector.NewWarehouse(store, connector.WarehouseConfig{
			Prefix:  wh.Prefix,
			Timeout: cfg.Sync.CallTimeout,
			Retry:   retry,
		}, opts...))
	}
	return registry, store, nil
}

// otelClient returns an HTTP client whose requests join the caller's trace
func otelClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

func ephemeralKey() string {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return base64.StdEncoding.EncodeToString(key)
}
