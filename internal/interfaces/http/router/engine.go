package router

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pdv/catalogsync/internal/infrastructure/auth"
	"github.com/pdv/catalogsync/internal/infrastructure/logger"
	"github.com/pdv/catalogsync/internal/interfaces/http/handler"
	"github.com/pdv/catalogsync/internal/interfaces/http/middleware"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig configures the HTTP engine
type EngineConfig struct {
	ServiceName    string
	CORS           middleware.CORSConfig
	TrustedProxies []string
	// MaxBodySize caps request bodies; zero disables the limit
	MaxBodySize int64
	Tracing     bool
	// Meter enables request metrics when set
	Meter  metric.Meter
	Logger *zap.Logger
	// Validator enables operator authentication on the sync routes when set
	Validator   middleware.TokenValidator
	Revocations auth.RevocationList
	// Swagger guards /swagger; the docs package must be linked in for it to
	// have anything to serve
	Swagger middleware.SwaggerConfig
}

// Handlers are the endpoint implementations mounted by NewEngine
type Handlers struct {
	Sync    *handler.SyncHandler
	Webhook *handler.WebhookHandler
	System  *handler.SystemHandler
}

// NewEngine builds the gin engine with the middleware chain and every
// /api/v1 route
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Swagger.Enabled && cfg.Swagger.RequireAuth && cfg.Validator == nil {
		return nil, errors.New("swagger auth requires a token validator")
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.SpanEnricher(),
		logger.GinMiddleware(cfg.Logger),
		middleware.HTTPMetrics(cfg.Meter, cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, operatorAuth(cfg)),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	var groups []*DomainGroup
	if h.System != nil {
		groups = append(groups, systemRoutes(h.System))
	}
	if h.Sync != nil {
		groups = append(groups, syncRoutes(h.Sync, cfg))
	}
	if h.Webhook != nil {
		groups = append(groups, webhookRoutes(h.Webhook))
	}
	r := NewRouter(engine)
	for _, g := range groups {
		r.Register(g)
		cfg.Logger.Debug("Route group registered", zap.String("group", g.Name()), zap.String("prefix", g.Prefix()))
	}
	r.Setup()

	return engine, nil
}

func systemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/ping", h.Ping).
		GET("/info", h.GetSystemInfo)
}

// operatorAuth is nil when operator authentication is off
func operatorAuth(cfg EngineConfig) gin.HandlerFunc {
	if cfg.Validator == nil {
		return nil
	}
	return middleware.JWTAuth(middleware.JWTMiddlewareConfig{
		Validator:   cfg.Validator,
		Revocations: cfg.Revocations,
		Logger:      cfg.Logger,
	})
}

func syncRoutes(h *handler.SyncHandler, cfg EngineConfig) *DomainGroup {
	group := NewDomainGroup("sync", "/sync")
	if jwt := operatorAuth(cfg); jwt != nil {
		group.Use(jwt)
	}

	read := middleware.RequireScope(auth.ScopeSyncRead)
	write := middleware.RequireScope(auth.ScopeSyncWrite)

	group.GET("/connection", read, h.CheckConnection)
	group.GET("/runs", read, h.ListRuns)
	group.GET("/runs/:id", read, h.GetRun)

	group.POST("/products", write, h.SyncProducts)
	group.POST("/products/selected", write, h.SyncSelected)
	group.DELETE("/products", write, h.ClearManagedProducts)
	group.POST("/stock", write, h.UpdateStock)
	group.POST("/webhook", write, h.EnsureWebhook)
	return group
}

// Deliveries are authenticated by signature, not by operator token
func webhookRoutes(h *handler.WebhookHandler) *DomainGroup {
	return NewDomainGroup("webhooks", "/webhooks").
		POST("/platform", h.HandlePlatformWebhook)
}
