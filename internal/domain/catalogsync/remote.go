package catalogsync

// StockStatus is the remote availability flag
type StockStatus string

const (
	StockStatusInStock    StockStatus = "instock"
	StockStatusOutOfStock StockStatus = "outofstock"
)

// PublishStatus is the remote publication status
type PublishStatus string

const (
	PublishStatusPublish PublishStatus = "publish"
	PublishStatusDraft   PublishStatus = "draft"
	PublishStatusPending PublishStatus = "pending"
	PublishStatusPrivate PublishStatus = "private"
)

// IsValid checks if the publication status is known
func (s PublishStatus) IsValid() bool {
	switch s {
	case PublishStatusPublish, PublishStatusDraft, PublishStatusPending, PublishStatusPrivate:
		return true
	}
	return false
}

// Ownership marker written on every product pushed by this system.
const (
	ManagedMetaKey   = "_pdv_managed"
	ManagedMetaValue = "true"
	// SourceMetaKey carries the local inventory identifier
	SourceMetaKey = "_pdv_local_id"
)

// RemoteProduct is a product record on the catalog platform.
type RemoteProduct struct {
	ID               int64         `json:"id,omitempty"`
	SKU              string        `json:"sku"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	ShortDescription string        `json:"short_description,omitempty"`
	RegularPrice     string        `json:"regular_price"`
	ManageStock      bool          `json:"manage_stock"`
	StockQuantity    int           `json:"stock_quantity"`
	StockStatus      StockStatus   `json:"stock_status"`
	Status           PublishStatus `json:"status,omitempty"`
	Categories       []CategoryRef `json:"categories,omitempty"`
	Images           []MediaRef    `json:"images,omitempty"`
	MetaData         []MetaData    `json:"meta_data,omitempty"`
}

// IsManaged reports whether the product carries the ownership marker.
// Products written before the marker existed are recognized by SKU prefix.
func (p RemoteProduct) IsManaged() bool {
	for _, m := range p.MetaData {
		if m.Key == ManagedMetaKey {
			if v, ok := m.Value.(string); ok && v == ManagedMetaValue {
				return true
			}
		}
	}
	return IsManagedSKU(p.SKU)
}

// StockUpdate is the restricted payload written by the stock updater.
type StockUpdate struct {
	ManageStock   bool        `json:"manage_stock"`
	StockQuantity int         `json:"stock_quantity"`
	StockStatus   StockStatus `json:"stock_status"`
}

// CategoryRef references a category from a product
type CategoryRef struct {
	ID int64 `json:"id"`
}

// MetaData is a key/value entry attached to a remote product
type MetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// RemoteCategory is a product category on the platform.
type RemoteCategory struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// MediaRef references an image from a product: either an uploaded asset ID
// or a source URL the platform will sideload.
type MediaRef struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src,omitempty"`
}

// RemoteMediaAsset is an uploaded media library entry.
type RemoteMediaAsset struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	Filename  string `json:"filename"`
}

// Ref converts the asset into a product image reference.
func (a RemoteMediaAsset) Ref() MediaRef {
	return MediaRef{ID: a.ID}
}

// MediaUpload is one binary image ready for upload.
type MediaUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Caption     string
	AltText     string
}

// MediaCredentials are the operator-level credentials used by the media endpoint.
type MediaCredentials struct {
	Username            string `json:"username"`
	ApplicationPassword string `json:"application_password"`
}

// IsComplete reports whether both parts are set
func (c MediaCredentials) IsComplete() bool {
	return c.Username != "" && c.ApplicationPassword != ""
}

// Webhook is a notification callback registration on the platform.
type Webhook struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Topic       string `json:"topic"`
	DeliveryURL string `json:"delivery_url"`
	Secret      string `json:"secret,omitempty"`
}

// WebhookRegistration is the outcome of ensuring a webhook.
type WebhookRegistration struct {
	Registered bool  `json:"registered"`
	WebhookID  int64 `json:"webhook_id"`
	// Created is false when an existing registration was reused
	Created bool `json:"created"`
}

// ConnectionStatus is the outcome of a reachability check.
type ConnectionStatus struct {
	Reachable bool   `json:"reachable"`
	Details   string `json:"details"`
	// Via names the check that succeeded ("root" or "categories")
	Via       string `json:"via,omitempty"`
}
