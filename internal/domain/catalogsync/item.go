package catalogsync

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Local catalog item
// ---------------------------------------------------------------------------

// LocalCatalogItem is an inventory record produced by the point-of-sale inventory subsystem.
type LocalCatalogItem struct {
	// ID is the local inventory identifier; the SKU is derived from it
	ID int64 `json:"id" validate:"required,gt=0"`
	// Name is the display name of the item
	Name string `json:"name" validate:"required,max=200"`
	// Description is the short description shown in listings
	Description string `json:"description"`
	// LongDescription is the long-form description text
	LongDescription string `json:"long_description"`
	// Price is the unit price
	Price decimal.Decimal `json:"price"`
	// Quantity is the quantity on hand
	Quantity int `json:"quantity" validate:"gte=0"`
	// Category is the category name; empty means uncategorized
	Category string `json:"category" validate:"max=120"`
	// PrimaryImage is the main image (embedded data URI, URL or storage reference)
	PrimaryImage ImageSource `json:"primary_image"`
	// AdditionalImages are secondary images in display order
	AdditionalImages []ImageSource `json:"additional_images"`
}

var itemValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the item before any remote call is made for it.
func (i LocalCatalogItem) Validate() error {
	if err := itemValidator.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidItem)
	}
	return nil
}

// SKU returns the stable external key of the item.
func (i LocalCatalogItem) SKU() string {
	return DeriveSKU(i.ID)
}

// Images returns the primary image followed by the additional images, skipping empty sources.
func (i LocalCatalogItem) Images() []ImageSource {
	images := make([]ImageSource, 0, len(i.AdditionalImages)+1)
	if !i.PrimaryImage.IsEmpty() {
		images = append(images, i.PrimaryImage)
	}
	for _, img := range i.AdditionalImages {
		if !img.IsEmpty() {
			images = append(images, img)
		}
	}
	return images
}

// ---------------------------------------------------------------------------
// Image sources
// ---------------------------------------------------------------------------

// ImageSource holds a locally referenced image.
// It is one of: an http(s) URL, a data URI, or an s3://bucket/key object reference.
type ImageSource string

// ImageKind classifies an ImageSource
type ImageKind string

const (
	ImageKindNone     ImageKind = "none"
	ImageKindRemote   ImageKind = "remote"
	ImageKindEmbedded ImageKind = "embedded"
	ImageKindStored   ImageKind = "stored"
	ImageKindUnknown  ImageKind = "unknown"
)

// StorageScheme is the prefix of object storage image references
const StorageScheme = "s3://"

// Kind reports what kind of source the image is.
func (s ImageSource) Kind() ImageKind {
	v := strings.TrimSpace(string(s))
	lower := strings.ToLower(v)
	switch {
	case v == "":
		return ImageKindNone
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ImageKindRemote
	case strings.HasPrefix(lower, "data:"):
		return ImageKindEmbedded
	case strings.HasPrefix(lower, StorageScheme):
		return ImageKindStored
	default:
		return ImageKindUnknown
	}
}

// IsEmpty reports whether no image is set.
func (s ImageSource) IsEmpty() bool {
	return s.Kind() == ImageKindNone
}

// String returns the raw source, truncating embedded payloads for logging.
func (s ImageSource) String() string {
	if s.Kind() == ImageKindEmbedded && len(s) > 48 {
		return string(s[:48]) + "..."
	}
	return string(s)
}

// StorageLocation splits an s3://bucket/key reference.
func (s ImageSource) StorageLocation() (bucket, key string, err error) {
	if s.Kind() != ImageKindStored {
		return "", "", fmt.Errorf("%w: not a storage reference", ErrUnsupportedImage)
	}
	rest := strings.TrimSpace(string(s))[len(StorageScheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed storage reference %q", ErrUnsupportedImage, string(s))
	}
	return bucket, key, nil
}
