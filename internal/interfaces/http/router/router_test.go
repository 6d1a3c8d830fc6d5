package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/pdv/catalogsync/docs"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/infrastructure/auth"
	"github.com/pdv/catalogsync/internal/interfaces/http/handler"
	"github.com/pdv/catalogsync/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("test", "/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	NewRouter(engine).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	var order []string

	group := NewDomainGroup("items", "/items").Use(func(c *gin.Context) {
		order = append(order, "group")
		c.Next()
	})
	group.POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
	group.DELETE("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	group.Group("stock", "/stock").GET("", func(c *gin.Context) {
		order = append(order, "handler")
		c.Status(http.StatusOK)
	})
	NewRouter(engine).Register(group).Setup()

	assert.Equal(t, "items", group.Name())
	assert.Equal(t, "/items", group.Prefix())

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodPost, "/api/v1/items", http.StatusCreated},
		{http.MethodDelete, "/api/v1/items/9", http.StatusOK},
		{http.MethodGet, "/api/v1/items/stock", http.StatusOK},
		{http.MethodGet, "/api/v1/items/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
	assert.Contains(t, order, "handler")
	assert.Equal(t, "group", order[0])
}

// ---------------------------------------------------------------------------
// Full engine
// ---------------------------------------------------------------------------

type stubService struct{}

func (stubService) CheckConnection(context.Context) catalogsync.ConnectionStatus {
	return catalogsync.ConnectionStatus{Reachable: true, Via: "root"}
}
func (stubService) SyncProducts(context.Context, []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult {
	return &catalogsync.SyncBatchResult{Operation: catalogsync.OperationSyncProducts, Status: catalogsync.SyncStatusSuccess}
}
func (stubService) SyncSelected(context.Context, []catalogsync.LocalCatalogItem, []int) *catalogsync.SyncBatchResult {
	return &catalogsync.SyncBatchResult{Operation: catalogsync.OperationSyncSelected, Status: catalogsync.SyncStatusSuccess}
}
func (stubService) UpdateStock(context.Context, []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult {
	return &catalogsync.SyncBatchResult{Operation: catalogsync.OperationUpdateStock, Status: catalogsync.SyncStatusSuccess}
}
func (stubService) ClearManagedProducts(context.Context) *catalogsync.SyncBatchResult {
	return &catalogsync.SyncBatchResult{Operation: catalogsync.OperationClearProducts, Status: catalogsync.SyncStatusSuccess}
}
func (stubService) EnsureWebhook(context.Context, string) (*catalogsync.WebhookRegistration, error) {
	return &catalogsync.WebhookRegistration{Registered: true, WebhookID: 1}, nil
}
func (stubService) GetRun(context.Context, uuid.UUID) (*catalogsync.SyncRun, error) {
	return nil, catalogsync.ErrSyncRunNotFound
}
func (stubService) ListRuns(context.Context, catalogsync.SyncRunFilter) ([]catalogsync.SyncRun, int64, error) {
	return []catalogsync.SyncRun{}, 0, nil
}

func newTestEngine(t *testing.T, validator middleware.TokenValidator) *gin.Engine {
	t.Helper()
	return newTestEngineWithSwagger(t, validator, middleware.SwaggerConfig{})
}

func newTestEngineWithSwagger(t *testing.T, validator middleware.TokenValidator, swagger middleware.SwaggerConfig) *gin.Engine {
	t.Helper()
	log := zaptest.NewLogger(t)
	engine, err := NewEngine(EngineConfig{
		ServiceName: "catalogsync-test",
		CORS:        middleware.DefaultCORSConfig(),
		MaxBodySize: 1 << 20,
		Logger:      log,
		Validator:   validator,
		Swagger:     swagger,
	}, Handlers{
		Sync:    handler.NewSyncHandler(stubService{}, handler.WithWebhookTarget("https://pos.example/hook")),
		Webhook: handler.NewWebhookHandler("secret", nil, log),
		System:  handler.NewSystemHandler("catalogsync", "test"),
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, nil)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/system/ping", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/connection", "", http.StatusOK},
		{http.MethodPost, "/api/v1/sync/products", `{"items":[]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/sync/products/selected", `{"items":[{"id":1}],"indices":[0]}`, http.StatusOK},
		{http.MethodDelete, "/api/v1/sync/products", "", http.StatusOK},
		{http.MethodPost, "/api/v1/sync/stock", `{"items":[]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/sync/webhook", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/runs", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/runs/" + uuid.NewString(), "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/webhooks/platform", "webhook_id=5", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}
}

func TestNewEngine_Auth(t *testing.T) {
	jwtService, err := auth.NewJWTService(auth.Config{
		Secret:     "router-test-secret-0123456789abcdef",
		Issuer:     "catalogsync",
		Expiration: time.Minute,
	})
	require.NoError(t, err)
	engine := newTestEngine(t, jwtService)

	reader, err := jwtService.Issue("viewer", []string{auth.ScopeSyncRead})
	require.NoError(t, err)
	writer, err := jwtService.Issue("operator", []string{auth.ScopeSyncWrite})
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"no token on sync", http.MethodGet, "/api/v1/sync/connection", "", http.StatusUnauthorized},
		{"read scope reads", http.MethodGet, "/api/v1/sync/runs", reader.Token, http.StatusOK},
		{"read scope cannot clear", http.MethodDelete, "/api/v1/sync/products", reader.Token, http.StatusForbidden},
		{"write scope clears", http.MethodDelete, "/api/v1/sync/products", writer.Token, http.StatusOK},
		{"write scope reads", http.MethodGet, "/api/v1/sync/connection", writer.Token, http.StatusOK},
		{"ping is public", http.MethodGet, "/api/v1/system/ping", "", http.StatusOK},
		{"webhook is signature protected only", http.MethodPost, "/api/v1/webhooks/platform", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"id":1}`))
			if tt.token != "" {
				req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+tt.token)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestNewEngine_Swagger(t *testing.T) {
	serve := func(engine *gin.Engine, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
		if token != "" {
			req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	t.Run("disabled by default", func(t *testing.T) {
		w := serve(newTestEngine(t, nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("serves the registered document", func(t *testing.T) {
		w := serve(newTestEngineWithSwagger(t, nil, middleware.SwaggerConfig{Enabled: true}), "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"/sync/products/selected"`)
		assert.Contains(t, w.Body.String(), `"basePath": "/api/v1"`)
	})

	t.Run("requires an operator token when configured", func(t *testing.T) {
		jwtService, err := auth.NewJWTService(auth.Config{
			Secret:     "router-test-secret-0123456789abcdef",
			Issuer:     "catalogsync",
			Expiration: time.Minute,
		})
		require.NoError(t, err)
		engine := newTestEngineWithSwagger(t, jwtService, middleware.SwaggerConfig{Enabled: true, RequireAuth: true})
		viewer, err := jwtService.Issue("viewer", []string{auth.ScopeSyncRead})
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, serve(engine, "").Code)
		assert.Equal(t, http.StatusOK, serve(engine, viewer.Token).Code)
	})

	t.Run("refuses auth without a validator", func(t *testing.T) {
		_, err := NewEngine(EngineConfig{Swagger: middleware.SwaggerConfig{Enabled: true, RequireAuth: true}}, Handlers{})
		require.Error(t, err)
	})
}

// Every mounted /api/v1 route has an entry in the served document
func TestNewEngine_SwaggerCoversRoutes(t *testing.T) {
	engine := newTestEngineWithSwagger(t, nil, middleware.SwaggerConfig{Enabled: true})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	for _, route := range engine.Routes() {
		path, ok := strings.CutPrefix(route.Path, "/api/v1")
		if !ok {
			continue
		}
		path = pathParam.ReplaceAllString(path, "{$1}")
		assert.Contains(t, doc.Paths[path], strings.ToLower(route.Method), "%s %s", route.Method, path)
	}
}

var pathParam = regexp.MustCompile(`:(\w+)`)
