package catalogsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Platform port
// ---------------------------------------------------------------------------

// CatalogPlatform is the remote REST surface consumed by the engine.
// Implementations perform one blocking request per call under a fixed timeout.
type CatalogPlatform interface {
	// PingRoot issues a lightweight request against the platform root resource
	PingRoot(ctx context.Context) error

	// PingCategories is the fallback check against the categories listing
	PingCategories(ctx context.Context) error

	// FindProductBySKU returns nil, nil when no product carries the SKU
	FindProductBySKU(ctx context.Context, sku string) (*RemoteProduct, error)

	// CreateProduct creates a product and returns it with its remote ID
	CreateProduct(ctx context.Context, product RemoteProduct) (*RemoteProduct, error)

	// UpdateProduct replaces the product fields with the payload
	UpdateProduct(ctx context.Context, id int64, product RemoteProduct) (*RemoteProduct, error)

	// UpdateStock writes only quantity and availability
	UpdateStock(ctx context.Context, id int64, update StockUpdate) (*RemoteProduct, error)

	// ListProducts returns one page of products (1-based page)
	ListProducts(ctx context.Context, page, perPage int) ([]RemoteProduct, error)

	// DeleteProduct permanently deletes a product
	DeleteProduct(ctx context.Context, id int64) error

	// ListCategories returns one bounded page of categories
	ListCategories(ctx context.Context, perPage int) ([]RemoteCategory, error)

	// CreateCategory creates a category by name
	CreateCategory(ctx context.Context, name string) (*RemoteCategory, error)

	// UploadMedia posts a binary image to the media endpoint using operator credentials
	UploadMedia(ctx context.Context, creds MediaCredentials, upload MediaUpload) (*RemoteMediaAsset, error)

	// ListWebhooks returns the existing webhook registrations
	ListWebhooks(ctx context.Context) ([]Webhook, error)

	// CreateWebhook registers a new webhook
	CreateWebhook(ctx context.Context, webhook Webhook) (*Webhook, error)
}

// ---------------------------------------------------------------------------
// Credentials and images
// ---------------------------------------------------------------------------

// CredentialProvider supplies operator credentials for media upload.
// It returns ErrCredentialMissing when none are available.
type CredentialProvider interface {
	MediaCredentials(ctx context.Context) (MediaCredentials, error)
}

// ImageStore fetches images referenced by object storage location.
type ImageStore interface {
	// Fetch returns the object body and its content type
	Fetch(ctx context.Context, bucket, key string) ([]byte, string, error)
}

// ---------------------------------------------------------------------------
// Sync run history
// ---------------------------------------------------------------------------

// SyncRun is a recorded batch execution.
type SyncRun struct {
	ID         uuid.UUID
	Operation  Operation
	Status     SyncStatus
	Created    int
	Updated    int
	Deleted    int
	Failed     int
	Details    []ItemResult
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewSyncRun records a batch result under a fresh identifier.
func NewSyncRun(result *SyncBatchResult) *SyncRun {
	return &SyncRun{
		ID:         uuid.New(),
		Operation:  result.Operation,
		Status:     result.Status,
		Created:    result.Created,
		Updated:    result.Updated,
		Deleted:    result.Deleted,
		Failed:     result.Failed,
		Details:    result.Details,
		Error:      result.Error,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
}

// SyncRunFilter narrows sync run listings
type SyncRunFilter struct {
	Operation Operation
	Status    SyncStatus
	Page      int
	PageSize  int
}

// SyncRunRepository persists batch history.
type SyncRunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	List(ctx context.Context, filter SyncRunFilter) ([]SyncRun, int64, error)
	// DeleteStartedBefore prunes runs started before cutoff and returns how many were removed
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
