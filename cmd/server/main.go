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
	_ "github.com/pdv/catalogsync/docs"
	syncapp "github.com/pdv/catalogsync/internal/application/catalogsync"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/infrastructure/auth"
	"github.com/pdv/catalogsync/internal/infrastructure/cache"
	"github.com/pdv/catalogsync/internal/infrastructure/config"
	"github.com/pdv/catalogsync/internal/infrastructure/credentials"
	"github.com/pdv/catalogsync/internal/infrastructure/ecommerce"
	"github.com/pdv/catalogsync/internal/infrastructure/logger"
	"github.com/pdv/catalogsync/internal/infrastructure/migration"
	"github.com/pdv/catalogsync/internal/infrastructure/persistence"
	"github.com/pdv/catalogsync/internal/infrastructure/scheduler"
	"github.com/pdv/catalogsync/internal/infrastructure/storage"
	"github.com/pdv/catalogsync/internal/infrastructure/telemetry"
	"github.com/pdv/catalogsync/internal/interfaces/http/handler"
	"github.com/pdv/catalogsync/internal/interfaces/http/middleware"
	"github.com/pdv/catalogsync/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

//	@title			Catalog Sync API
//	@version		1.0
//	@description	Pushes local inventory items to the e-commerce platform and reports per-item outcomes.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator token. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Logs are exported only when both telemetry and log export are on
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, nil)
	if err != nil {
		panic("Failed to initialize log export: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: logsProvider,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting catalog sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("platform", cfg.Platform.BaseURL),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, logsProvider)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingEndpoint,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingPassword,
		ProfileAlloc:      true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	meter := meterProvider.Meter("catalogsync")
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Sync run history
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), 200*time.Millisecond)))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterGormTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if err := migrateSchema(db, cfg.Database.Driver, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Shared Redis client, optional
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	deliveries := cache.NewIdempotencyStore(redisClient, cache.WithLogger(log))
	defer func() {
		_ = deliveries.Close()
	}()

	// Platform adapter
	wcConfig := ecommerce.NewWooCommerceConfig(cfg.Platform.BaseURL, cfg.Platform.ConsumerKey, cfg.Platform.ConsumerSecret)
	wcConfig.APIVersion = cfg.Platform.APIVersion
	wcConfig.Timeout = cfg.Platform.Timeout
	platform, err := ecommerce.NewWooCommerceAdapter(wcConfig, ecommerce.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create platform adapter", zap.Error(err))
	}

	credOpts := []credentials.CachedOption{credentials.WithLogger(log)}
	if redisClient != nil {
		credOpts = append(credOpts, credentials.WithSharedCache(credentials.NewRedisCache(redisClient, "")))
	}
	creds := credentials.NewCachedProvider(
		credentials.NewStaticProvider(cfg.Media.Username, cfg.Media.ApplicationPassword),
		cfg.Media.CredentialCacheTTL,
		credOpts...,
	)

	runRepo := persistence.NewSyncRunRepository(db.DB)
	retention := scheduler.NewRetentionScheduler(runRepo, scheduler.RetentionConfig{
		Retention: cfg.Sync.RunRetention,
		Interval:  cfg.Sync.RetentionInterval,
	}, log)
	if err := retention.Start(ctx); err != nil {
		log.Fatal("Failed to start run retention", zap.Error(err))
	}

	serviceOpts := []syncapp.Option{
		syncapp.WithLogger(log),
		syncapp.WithRunRepository(runRepo),
		syncapp.WithMetrics(syncMetrics),
		syncapp.WithProfileLabeler(profiler),
		syncapp.WithTracer(tracerProvider.Tracer("catalogsync")),
	}
	if cfg.Storage.Enabled {
		images, err := storage.NewS3ImageStore(ctx, &cfg.Storage,
			storage.WithLogger(log),
			storage.WithMaxBytes(int64(cfg.Media.MaxBytes)))
		if err != nil {
			log.Fatal("Failed to create image store", zap.Error(err))
		}
		serviceOpts = append(serviceOpts, syncapp.WithImageStore(images))
	}

	service := syncapp.NewService(platform, creds, syncapp.Config{
		CategoryPageSize: cfg.Sync.CategoryPageSize,
		CleanupPageSize:  cfg.Sync.CleanupPageSize,
		PublishStatus:    catalogsync.PublishStatus(cfg.Sync.PublishStatus),
		MediaChunkSize:   cfg.Media.ChunkSize,
		MediaMaxBytes:    cfg.Media.MaxBytes,
		WebhookTopic:     cfg.Webhook.Topic,
		WebhookName:      cfg.Webhook.Name,
		WebhookSecret:    cfg.Webhook.Secret,
	}, serviceOpts...)

	// Operator authentication
	var validator middleware.TokenValidator
	var revocations auth.RevocationList
	if cfg.HTTP.AuthSecret != "" {
		jwtService, err := auth.NewJWTService(auth.Config{
			Secret: cfg.HTTP.AuthSecret,
			Issuer: cfg.HTTP.AuthIssuer,
		})
		if err != nil {
			log.Fatal("Failed to create token validator", zap.Error(err))
		}
		validator = jwtService
		if redisClient != nil {
			revocations = auth.NewRedisRevocationList(redisClient, "")
		}
	} else {
		log.Warn("Operator authentication disabled: http.auth_secret is empty")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing:        cfg.Telemetry.Enabled,
		Meter:          meter,
		Logger:         log,
		Validator:      validator,
		Revocations:    revocations,
		Swagger: middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		},
	}, router.Handlers{
		Sync: handler.NewSyncHandler(service,
			handler.WithWebhookTarget(cfg.Webhook.TargetURL),
			handler.WithSyncLogger(log)),
		Webhook: handler.NewWebhookHandler(cfg.Webhook.Secret, deliveries, log),
		System:  handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	if cfg.Webhook.RegisterOnStart {
		go registerWebhook(ctx, service, cfg.Webhook.TargetURL, log)
	}

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := retention.Stop(shutdownCtx); err != nil {
		log.Error("Run retention did not stop", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the embedded migrations on the open connection
func migrateSchema(db *persistence.Database, driver string, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	if driver == "" {
		driver = "postgres"
	}
	m, err := migration.New(sqlDB, driver, "", log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared connection
	return m.Up()
}

func registerWebhook(ctx context.Context, service *syncapp.Service, target string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	reg, err := service.EnsureWebhook(ctx, target)
	if err != nil {
		log.Error("Webhook registration on start failed", zap.String("target_url", target), zap.Error(err))
		return
	}
	log.Info("Webhook registered",
		zap.Int64("webhook_id", reg.WebhookID),
		zap.Bool("created", reg.Created),
	)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
