package catalogsync

import "errors"

// Sentinel errors for the catalog synchronization context.
var (
	// ErrConnectivity means the platform could not be reached before a batch started.
	ErrConnectivity = errors.New("catalogsync: platform unreachable")

	// ErrCategoryCreation means a missing category could not be created remotely.
	ErrCategoryCreation = errors.New("catalogsync: category creation failed")

	// ErrMediaUpload means a single image could not be uploaded.
	ErrMediaUpload = errors.New("catalogsync: media upload failed")

	// ErrProductUpsert means a product could not be looked up, created or updated.
	ErrProductUpsert = errors.New("catalogsync: product upsert failed")

	// ErrProductDelete means a managed product could not be removed during cleanup.
	ErrProductDelete = errors.New("catalogsync: product delete failed")

	// ErrCredentialMissing means operator credentials for media upload are not available.
	ErrCredentialMissing = errors.New("catalogsync: media credentials missing")
)

var (
	ErrProductNotFound  = errors.New("catalogsync: remote product not found")
	ErrInvalidItem      = errors.New("catalogsync: invalid catalog item")
	ErrWebhookInvalid   = errors.New("catalogsync: invalid webhook registration")
	ErrUnsupportedImage = errors.New("catalogsync: unsupported image source")
	ErrImageTooLarge    = errors.New("catalogsync: image exceeds size limit")
	ErrSyncRunNotFound  = errors.New("catalogsync: sync run not found")
)

// Platform transport errors, produced by adapters.
var (
	ErrPlatformUnavailable     = errors.New("catalogsync: platform unavailable")
	ErrPlatformRequestFailed   = errors.New("catalogsync: platform request failed")
	ErrPlatformInvalidResponse = errors.New("catalogsync: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("catalogsync: platform authentication failed")
)
