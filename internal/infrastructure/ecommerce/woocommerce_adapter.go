package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the platform (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxErrorMessage caps the platform message copied into errors
const maxErrorMessage = 256

// WooCommerceAdapter implements catalogsync.CatalogPlatform for the WooCommerce REST API
type WooCommerceAdapter struct {
	config     *WooCommerceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// WooCommerceOption is a functional option for configuring WooCommerceAdapter
type WooCommerceOption func(*WooCommerceAdapter)

// WithLogger sets a custom logger for the adapter
func WithLogger(logger *zap.Logger) WooCommerceOption {
	return func(a *WooCommerceAdapter) {
		a.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to add instrumentation
func WithHTTPClient(client *http.Client) WooCommerceOption {
	return func(a *WooCommerceAdapter) {
		a.httpClient = client
	}
}

// NewWooCommerceAdapter creates a new WooCommerce adapter
func NewWooCommerceAdapter(config *WooCommerceConfig, opts ...WooCommerceOption) (*WooCommerceAdapter, error) {
	if config == nil {
		return nil, ErrWooCommerceConfigMissingBaseURL
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &WooCommerceAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Connectivity
// ---------------------------------------------------------------------------

// PingRoot requests the REST index
func (a *WooCommerceAdapter) PingRoot(ctx context.Context) error {
	_, err := a.doRequest(ctx, http.MethodGet, a.config.RootURL(), nil)
	return err
}

// PingCategories requests a single category
func (a *WooCommerceAdapter) PingCategories(ctx context.Context) error {
	_, err := a.doRequest(ctx, http.MethodGet, a.config.CatalogURL("/products/categories?per_page=1"), nil)
	return err
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// FindProductBySKU looks up a product by its exact SKU
func (a *WooCommerceAdapter) FindProductBySKU(ctx context.Context, sku string) (*catalogsync.RemoteProduct, error) {
	q := url.Values{}
	q.Set("sku", sku)
	q.Set("status", "any")
	body, err := a.doRequest(ctx, http.MethodGet, a.config.CatalogURL("/products?"+q.Encode()), nil)
	if err != nil {
		return nil, err
	}

	var products []catalogsync.RemoteProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	// the sku filter is a partial match on some stores
	for i := range products {
		if products[i].SKU == sku {
			return &products[i], nil
		}
	}
	return nil, nil
}

// CreateProduct creates a product
func (a *WooCommerceAdapter) CreateProduct(ctx context.Context, product catalogsync.RemoteProduct) (*catalogsync.RemoteProduct, error) {
	product.ID = 0
	return a.writeProduct(ctx, http.MethodPost, a.config.CatalogURL("/products"), product)
}

// UpdateProduct updates a product by ID
func (a *WooCommerceAdapter) UpdateProduct(ctx context.Context, id int64, product catalogsync.RemoteProduct) (*catalogsync.RemoteProduct, error) {
	product.ID = 0
	return a.writeProduct(ctx, http.MethodPut, a.productURL(id), product)
}

// UpdateStock writes the quantity-only payload
func (a *WooCommerceAdapter) UpdateStock(ctx context.Context, id int64, update catalogsync.StockUpdate) (*catalogsync.RemoteProduct, error) {
	return a.writeProduct(ctx, http.MethodPut, a.productURL(id), update)
}

// ListProducts lists one page of products
func (a *WooCommerceAdapter) ListProducts(ctx context.Context, page, perPage int) ([]catalogsync.RemoteProduct, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("status", "any")
	body, err := a.doRequest(ctx, http.MethodGet, a.config.CatalogURL("/products?"+q.Encode()), nil)
	if err != nil {
		return nil, err
	}

	var products []catalogsync.RemoteProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	return products, nil
}

// DeleteProduct permanently deletes a product, bypassing the trash
func (a *WooCommerceAdapter) DeleteProduct(ctx context.Context, id int64) error {
	_, err := a.doRequest(ctx, http.MethodDelete, a.productURL(id)+"?force=true", nil)
	return err
}

func (a *WooCommerceAdapter) productURL(id int64) string {
	return a.config.CatalogURL("/products/" + strconv.FormatInt(id, 10))
}

func (a *WooCommerceAdapter) writeProduct(ctx context.Context, method, endpoint string, payload any) (*catalogsync.RemoteProduct, error) {
	body, err := a.doRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	var product catalogsync.RemoteProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	if product.ID == 0 {
		return nil, fmt.Errorf("%w: product response without id", catalogsync.ErrPlatformInvalidResponse)
	}
	return &product, nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// ListCategories lists one bounded page of categories
func (a *WooCommerceAdapter) ListCategories(ctx context.Context, perPage int) ([]catalogsync.RemoteCategory, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("hide_empty", "false")
	body, err := a.doRequest(ctx, http.MethodGet, a.config.CatalogURL("/products/categories?"+q.Encode()), nil)
	if err != nil {
		return nil, err
	}

	var categories []catalogsync.RemoteCategory
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	return categories, nil
}

// CreateCategory creates a category. A name that already exists remotely
// resolves to the existing category.
func (a *WooCommerceAdapter) CreateCategory(ctx context.Context, name string) (*catalogsync.RemoteCategory, error) {
	body, err := a.doRequest(ctx, http.MethodPost, a.config.CatalogURL("/products/categories"), wcCategoryCreate{Name: name})
	if err != nil {
		var perr *PlatformError
		if errors.As(err, &perr) && perr.Code == wcErrCodeTermExists && perr.ResourceID > 0 {
			a.logger.Debug("category already exists",
				zap.String("name", name),
				zap.Int64("category_id", perr.ResourceID),
			)
			return &catalogsync.RemoteCategory{ID: perr.ResourceID, Name: name}, nil
		}
		return nil, err
	}

	var category catalogsync.RemoteCategory
	if err := json.Unmarshal(body, &category); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	if category.ID == 0 {
		return nil, fmt.Errorf("%w: category response without id", catalogsync.ErrPlatformInvalidResponse)
	}
	return &category, nil
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// UploadMedia posts the image as multipart/form-data to the media library,
// authenticating with the operator credentials.
func (a *WooCommerceAdapter) UploadMedia(ctx context.Context, creds catalogsync.MediaCredentials, upload catalogsync.MediaUpload) (*catalogsync.RemoteMediaAsset, error) {
	if !creds.IsComplete() {
		return nil, catalogsync.ErrCredentialMissing
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to build upload: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to build upload: %w", err)
	}
	fields := map[string]string{
		"title":    upload.Title,
		"caption":  upload.Caption,
		"alt_text": upload.AltText,
	}
	for _, k := range []string{"title", "caption", "alt_text"} {
		if fields[k] == "" {
			continue
		}
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("woocommerce: failed to build upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("woocommerce: failed to build upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.MediaURL(), &buf)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", upload.Filename))
	req.SetBasicAuth(creds.Username, creds.ApplicationPassword)

	body, err := a.send(req)
	if err != nil {
		return nil, err
	}

	var media wcMediaResponse
	if err := json.Unmarshal(body, &media); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	if media.ID == 0 {
		return nil, fmt.Errorf("%w: media response without id", catalogsync.ErrPlatformInvalidResponse)
	}

	filename := path.Base(media.MediaDetails.File)
	if media.MediaDetails.File == "" {
		filename = upload.Filename
	}
	return &catalogsync.RemoteMediaAsset{
		ID:        media.ID,
		SourceURL: media.SourceURL,
		Filename:  filename,
	}, nil
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// ListWebhooks lists the registered webhooks
func (a *WooCommerceAdapter) ListWebhooks(ctx context.Context) ([]catalogsync.Webhook, error) {
	body, err := a.doRequest(ctx, http.MethodGet, a.config.CatalogURL("/webhooks?per_page=100"), nil)
	if err != nil {
		return nil, err
	}
	var webhooks []catalogsync.Webhook
	if err := json.Unmarshal(body, &webhooks); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	return webhooks, nil
}

// CreateWebhook registers an active webhook
func (a *WooCommerceAdapter) CreateWebhook(ctx context.Context, webhook catalogsync.Webhook) (*catalogsync.Webhook, error) {
	status := webhook.Status
	if status == "" {
		status = "active"
	}
	body, err := a.doRequest(ctx, http.MethodPost, a.config.CatalogURL("/webhooks"), wcWebhookCreate{
		Name:        webhook.Name,
		Topic:       webhook.Topic,
		DeliveryURL: webhook.DeliveryURL,
		Secret:      webhook.Secret,
		Status:      status,
	})
	if err != nil {
		return nil, err
	}
	var created catalogsync.Webhook
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformInvalidResponse, err)
	}
	if created.ID == 0 {
		return nil, fmt.Errorf("%w: webhook response without id", catalogsync.ErrPlatformInvalidResponse)
	}
	return &created, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// PlatformError is a non-2xx answer from the platform
type PlatformError struct {
	StatusCode int
	Code       string
	Message    string
	ResourceID int64
	sentinel   error
}

// Error implements the error interface
func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("%v: HTTP %d", e.sentinel, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the sentinel error
func (e *PlatformError) Unwrap() error {
	return e.sentinel
}

func (a *WooCommerceAdapter) doRequest(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("woocommerce: failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
	return a.send(req)
}

func (a *WooCommerceAdapter) send(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.config.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalogsync.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		perr := &PlatformError{StatusCode: resp.StatusCode, sentinel: catalogsync.ErrPlatformRequestFailed}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			perr.sentinel = catalogsync.ErrPlatformAuthFailed
		}
		var wcErr wcErrorResponse
		if json.Unmarshal(body, &wcErr) == nil {
			perr.Code = wcErr.Code
			perr.Message = truncate(wcErr.Message, maxErrorMessage)
			perr.ResourceID = int64(wcErr.Data.ResourceID)
		}
		a.logger.Debug("platform request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", perr.Code),
		)
		return nil, perr
	}

	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure WooCommerceAdapter implements CatalogPlatform
var _ catalogsync.CatalogPlatform = (*WooCommerceAdapter)(nil)
