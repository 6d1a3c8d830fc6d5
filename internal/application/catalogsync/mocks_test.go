package catalogsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/stretchr/testify/mock"
)

// MockCatalogPlatform is a mock implementation of catalogsync.CatalogPlatform
type MockCatalogPlatform struct {
	mock.Mock
}

func (m *MockCatalogPlatform) PingRoot(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCatalogPlatform) PingCategories(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCatalogPlatform) FindProductBySKU(ctx context.Context, sku string) (*catalogsync.RemoteProduct, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteProduct), args.Error(1)
}

func (m *MockCatalogPlatform) CreateProduct(ctx context.Context, product catalogsync.RemoteProduct) (*catalogsync.RemoteProduct, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteProduct), args.Error(1)
}

func (m *MockCatalogPlatform) UpdateProduct(ctx context.Context, id int64, product catalogsync.RemoteProduct) (*catalogsync.RemoteProduct, error) {
	args := m.Called(ctx, id, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteProduct), args.Error(1)
}

func (m *MockCatalogPlatform) UpdateStock(ctx context.Context, id int64, update catalogsync.StockUpdate) (*catalogsync.RemoteProduct, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteProduct), args.Error(1)
}

func (m *MockCatalogPlatform) ListProducts(ctx context.Context, page, perPage int) ([]catalogsync.RemoteProduct, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogsync.RemoteProduct), args.Error(1)
}

func (m *MockCatalogPlatform) DeleteProduct(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalogPlatform) ListCategories(ctx context.Context, perPage int) ([]catalogsync.RemoteCategory, error) {
	args := m.Called(ctx, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogsync.RemoteCategory), args.Error(1)
}

func (m *MockCatalogPlatform) CreateCategory(ctx context.Context, name string) (*catalogsync.RemoteCategory, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteCategory), args.Error(1)
}

func (m *MockCatalogPlatform) UploadMedia(ctx context.Context, creds catalogsync.MediaCredentials, upload catalogsync.MediaUpload) (*catalogsync.RemoteMediaAsset, error) {
	args := m.Called(ctx, creds, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.RemoteMediaAsset), args.Error(1)
}

func (m *MockCatalogPlatform) ListWebhooks(ctx context.Context) ([]catalogsync.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalogsync.Webhook), args.Error(1)
}

func (m *MockCatalogPlatform) CreateWebhook(ctx context.Context, webhook catalogsync.Webhook) (*catalogsync.Webhook, error) {
	args := m.Called(ctx, webhook)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Webhook), args.Error(1)
}

// MockCredentialProvider is a mock implementation of catalogsync.CredentialProvider
type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) MediaCredentials(ctx context.Context) (catalogsync.MediaCredentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(catalogsync.MediaCredentials), args.Error(1)
}

// MockImageStore is a mock implementation of catalogsync.ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Fetch(ctx context.Context, bucket, key string) ([]byte, string, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

// MockSyncRunRepository is a mock implementation of catalogsync.SyncRunRepository
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Save(ctx context.Context, run *catalogsync.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) List(ctx context.Context, filter catalogsync.SyncRunFilter) ([]catalogsync.SyncRun, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]catalogsync.SyncRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncRunRepository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// recordingMetrics captures metric calls
type recordingMetrics struct {
	mu      sync.Mutex
	items   map[catalogsync.ItemStatus]int
	batches []catalogsync.SyncStatus
	media   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		items: make(map[catalogsync.ItemStatus]int),
		media: make(map[string]int),
	}
}

func (r *recordingMetrics) RecordItem(_ context.Context, _ catalogsync.Operation, status catalogsync.ItemStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[status]++
}

func (r *recordingMetrics) RecordBatch(_ context.Context, _ catalogsync.Operation, status catalogsync.SyncStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, status)
}

func (r *recordingMetrics) RecordMediaUpload(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[outcome]++
}
