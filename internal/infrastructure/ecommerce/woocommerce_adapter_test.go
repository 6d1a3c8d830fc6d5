package ecommerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestWooCommerceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *WooCommerceConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &WooCommerceConfig{BaseURL: "https://shop.example.com/", ConsumerKey: "ck", ConsumerSecret: "cs"},
			wantErr: nil,
		},
		{
			name:    "missing base url",
			config:  &WooCommerceConfig{ConsumerKey: "ck", ConsumerSecret: "cs"},
			wantErr: ErrWooCommerceConfigMissingBaseURL,
		},
		{
			name:    "relative base url",
			config:  &WooCommerceConfig{BaseURL: "shop.example.com", ConsumerKey: "ck", ConsumerSecret: "cs"},
			wantErr: ErrWooCommerceConfigInvalidBaseURL,
		},
		{
			name:    "missing consumer key",
			config:  &WooCommerceConfig{BaseURL: "https://shop.example.com", ConsumerSecret: "cs"},
			wantErr: ErrWooCommerceConfigMissingKey,
		},
		{
			name:    "missing consumer secret",
			config:  &WooCommerceConfig{BaseURL: "https://shop.example.com", ConsumerKey: "ck"},
			wantErr: ErrWooCommerceConfigMissingSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://shop.example.com", tt.config.BaseURL)
			assert.Equal(t, DefaultWooCommerceAPIVersion, tt.config.APIVersion)
			assert.Equal(t, DefaultWooCommerceTimeout, tt.config.Timeout)
		})
	}
}

func TestWooCommerceConfig_URLs(t *testing.T) {
	cfg := NewWooCommerceConfig("https://shop.example.com", "ck", "cs")
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://shop.example.com/wp-json/", cfg.RootURL())
	assert.Equal(t, "https://shop.example.com/wp-json/wc/v3/products", cfg.CatalogURL("/products"))
	assert.Equal(t, "https://shop.example.com/wp-json/wp/v2/media", cfg.MediaURL())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func createMockWooServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func createTestAdapterWithServer(t *testing.T, serverURL string) *WooCommerceAdapter {
	t.Helper()
	cfg := NewWooCommerceConfig(serverURL, "ck_test", "cs_test")
	cfg.Timeout = 2 * time.Second
	adapter, err := NewWooCommerceAdapter(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return adapter
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func assertCatalogAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "ck_test", user)
	assert.Equal(t, "cs_test", pass)
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func TestNewWooCommerceAdapter(t *testing.T) {
	_, err := NewWooCommerceAdapter(nil)
	assert.Error(t, err)

	_, err = NewWooCommerceAdapter(&WooCommerceConfig{})
	assert.ErrorIs(t, err, ErrWooCommerceConfigMissingBaseURL)

	a, err := NewWooCommerceAdapter(NewWooCommerceConfig("https://shop.example.com", "ck", "cs"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWooCommerceTimeout, a.httpClient.Timeout)
}

func TestWooCommerceAdapter_Ping(t *testing.T) {
	t.Run("root reachable", func(t *testing.T) {
		server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/wp-json/", r.URL.Path)
			assertCatalogAuth(t, r)
			writeJSON(t, w, http.StatusOK, map[string]any{"name": "Shop"})
		})
		adapter := createTestAdapterWithServer(t, server.URL)
		assert.NoError(t, adapter.PingRoot(context.Background()))
	})

	t.Run("categories check", func(t *testing.T) {
		server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/wp-json/wc/v3/products/categories", r.URL.Path)
			assert.Equal(t, "1", r.URL.Query().Get("per_page"))
			writeJSON(t, w, http.StatusOK, []any{})
		})
		adapter := createTestAdapterWithServer(t, server.URL)
		assert.NoError(t, adapter.PingCategories(context.Background()))
	})

	t.Run("server error", func(t *testing.T) {
		server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		adapter := createTestAdapterWithServer(t, server.URL)
		err := adapter.PingRoot(context.Background())
		assert.ErrorIs(t, err, catalogsync.ErrPlatformRequestFailed)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()
		adapter := createTestAdapterWithServer(t, url)
		err := adapter.PingRoot(context.Background())
		assert.ErrorIs(t, err, catalogsync.ErrPlatformUnavailable)
	})
}

func TestWooCommerceAdapter_FindProductBySKU(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assertCatalogAuth(t, r)
		switch r.URL.Query().Get("sku") {
		case "PDV-1":
			// partial matches are returned alongside the exact one
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"id": 11, "sku": "PDV-10", "name": "Other"},
				{"id": 10, "sku": "PDV-1", "name": "Mouse", "regular_price": "50", "stock_quantity": 10},
			})
		default:
			writeJSON(t, w, http.StatusOK, []any{})
		}
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	p, err := adapter.FindProductBySKU(context.Background(), "PDV-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(10), p.ID)
	assert.Equal(t, "50", p.RegularPrice)
	assert.Equal(t, 10, p.StockQuantity)

	p, err = adapter.FindProductBySKU(context.Background(), "PDV-2")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestWooCommerceAdapter_CreateAndUpdateProduct(t *testing.T) {
	var received []map[string]any
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assertCatalogAuth(t, r)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received = append(received, body)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/wp-json/wc/v3/products":
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 101, "sku": body["sku"]})
		case r.Method == http.MethodPut && r.URL.Path == "/wp-json/wc/v3/products/101":
			writeJSON(t, w, http.StatusOK, map[string]any{"id": 101, "sku": "PDV-1"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	payload := catalogsync.RemoteProduct{
		ID:            999,
		SKU:           "PDV-1",
		Name:          "Mouse",
		RegularPrice:  "50",
		ManageStock:   true,
		StockQuantity: 10,
		StockStatus:   catalogsync.StockStatusInStock,
		Status:        catalogsync.PublishStatusPublish,
		Categories:    []catalogsync.CategoryRef{{ID: 5}},
	}

	created, err := adapter.CreateProduct(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, int64(101), created.ID)

	updated, err := adapter.UpdateProduct(context.Background(), 101, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(101), updated.ID)

	require.Len(t, received, 2)
	assert.NotContains(t, received[0], "id")
	assert.Equal(t, "50", received[0]["regular_price"])
	assert.Equal(t, float64(10), received[0]["stock_quantity"])
	assert.Equal(t, "publish", received[0]["status"])
}

func TestWooCommerceAdapter_UpdateStock(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/products/7", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, 3)
		assert.Equal(t, float64(0), body["stock_quantity"])
		assert.Equal(t, "outofstock", body["stock_status"])
		writeJSON(t, w, http.StatusOK, map[string]any{"id": 7})
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	_, err := adapter.UpdateStock(context.Background(), 7, catalogsync.StockUpdate{
		ManageStock: true, StockQuantity: 0, StockStatus: catalogsync.StockStatusOutOfStock,
	})
	require.NoError(t, err)
}

func TestWooCommerceAdapter_ListAndDeleteProducts(t *testing.T) {
	var deleted []string
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "50", r.URL.Query().Get("per_page"))
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"id": 1, "sku": "PDV-1", "meta_data": []map[string]any{{"key": "_pdv_managed", "value": "true"}}},
				{"id": 2, "sku": "EXT-2"},
			})
		case http.MethodDelete:
			assert.Equal(t, "true", r.URL.Query().Get("force"))
			deleted = append(deleted, r.URL.Path)
			writeJSON(t, w, http.StatusOK, map[string]any{"id": 1})
		}
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	products, err := adapter.ListProducts(context.Background(), 2, 50)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products[0].IsManaged())
	assert.False(t, products[1].IsManaged())

	require.NoError(t, adapter.DeleteProduct(context.Background(), 1))
	assert.Equal(t, []string{"/wp-json/wc/v3/products/1"}, deleted)
}

func TestWooCommerceAdapter_Categories(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))
			writeJSON(t, w, http.StatusOK, []map[string]any{{"id": 3, "name": "Tools", "slug": "tools"}})
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			switch body["name"] {
			case "Gadgets":
				writeJSON(t, w, http.StatusCreated, map[string]any{"id": 4, "name": "Gadgets"})
			case "Existing":
				writeJSON(t, w, http.StatusBadRequest, map[string]any{
					"code":    "term_exists",
					"message": "A term with the name provided already exists.",
					"data":    map[string]any{"status": 400, "resource_id": 9},
				})
			default:
				writeJSON(t, w, http.StatusBadRequest, map[string]any{
					"code":    "rest_invalid_param",
					"message": "Invalid parameter(s): name",
				})
			}
		}
	})
	adapter := createTestAdapterWithServer(t, server.URL)
	ctx := context.Background()

	cats, err := adapter.ListCategories(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []catalogsync.RemoteCategory{{ID: 3, Name: "Tools", Slug: "tools"}}, cats)

	created, err := adapter.CreateCategory(ctx, "Gadgets")
	require.NoError(t, err)
	assert.Equal(t, int64(4), created.ID)

	existing, err := adapter.CreateCategory(ctx, "Existing")
	require.NoError(t, err)
	assert.Equal(t, int64(9), existing.ID)

	_, err = adapter.CreateCategory(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogsync.ErrPlatformRequestFailed)
	assert.Contains(t, err.Error(), "rest_invalid_param")
}

func TestWooCommerceAdapter_UploadMedia(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "operator", user)
		assert.Equal(t, "app pass", pass)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Mouse", r.FormValue("title"))
		assert.Equal(t, "Mouse caption", r.FormValue("caption"))
		assert.Equal(t, "Mouse", r.FormValue("alt_text"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "PDV-1.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

		writeJSON(t, w, http.StatusCreated, map[string]any{
			"id":            55,
			"source_url":    "https://shop.example.com/wp-content/uploads/2026/01/PDV-1.png",
			"media_details": map[string]any{"file": "2026/01/PDV-1.png"},
		})
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	asset, err := adapter.UploadMedia(context.Background(),
		catalogsync.MediaCredentials{Username: "operator", ApplicationPassword: "app pass"},
		catalogsync.MediaUpload{
			Filename:    "PDV-1.png",
			ContentType: "image/png",
			Data:        []byte{0x89, 'P', 'N', 'G'},
			Title:       "Mouse",
			Caption:     "Mouse caption",
			AltText:     "Mouse",
		})
	require.NoError(t, err)
	assert.Equal(t, int64(55), asset.ID)
	assert.Equal(t, "PDV-1.png", asset.Filename)
	assert.Equal(t, catalogsync.MediaRef{ID: 55}, asset.Ref())
}

func TestWooCommerceAdapter_UploadMedia_Errors(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{"code": "rest_cannot_create", "message": "Sorry, you are not allowed to upload media."})
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	_, err := adapter.UploadMedia(context.Background(), catalogsync.MediaCredentials{}, catalogsync.MediaUpload{})
	assert.ErrorIs(t, err, catalogsync.ErrCredentialMissing)

	_, err = adapter.UploadMedia(context.Background(),
		catalogsync.MediaCredentials{Username: "u", ApplicationPassword: "p"},
		catalogsync.MediaUpload{Filename: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, catalogsync.ErrPlatformAuthFailed)
}

func TestWooCommerceAdapter_Webhooks(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/webhooks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"id": 1, "name": "POS", "status": "active", "topic": "product.updated", "delivery_url": "https://pos.example.com/hook"},
			})
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "active", body["status"])
			assert.Equal(t, "s3cret", body["secret"])
			writeJSON(t, w, http.StatusCreated, map[string]any{"id": 2, "delivery_url": body["delivery_url"], "topic": body["topic"]})
		}
	})
	adapter := createTestAdapterWithServer(t, server.URL)
	ctx := context.Background()

	hooks, err := adapter.ListWebhooks(ctx)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://pos.example.com/hook", hooks[0].DeliveryURL)

	created, err := adapter.CreateWebhook(ctx, catalogsync.Webhook{
		Name: "POS", Topic: "product.updated", DeliveryURL: "https://pos.example.com/other", Secret: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
}

func TestWooCommerceAdapter_InvalidResponse(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	adapter := createTestAdapterWithServer(t, server.URL)

	_, err := adapter.ListCategories(context.Background(), 10)
	assert.ErrorIs(t, err, catalogsync.ErrPlatformInvalidResponse)
}

func TestWooCommerceAdapter_Timeout(t *testing.T) {
	server := createMockWooServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	cfg := NewWooCommerceConfig(server.URL, "ck", "cs")
	cfg.Timeout = 50 * time.Millisecond
	adapter, err := NewWooCommerceAdapter(cfg)
	require.NoError(t, err)

	err = adapter.PingRoot(context.Background())
	assert.ErrorIs(t, err, catalogsync.ErrPlatformUnavailable)
}

func TestFlexInt64(t *testing.T) {
	var v struct {
		A flexInt64 `json:"a"`
		B flexInt64 `json:"b"`
		C flexInt64 `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 5, "b": "7", "c": null}`), &v))
	assert.Equal(t, flexInt64(5), v.A)
	assert.Equal(t, flexInt64(7), v.B)
	assert.Equal(t, flexInt64(0), v.C)
}
