package catalogsync

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// SKUPrefix is prepended to the local identifier to build the external key
const SKUPrefix = "PDV-"

// UncategorizedID is the sentinel category id used when a category cannot be resolved
const UncategorizedID int64 = 0

// DeriveSKU returns the stable external key for a local identifier.
func DeriveSKU(localID int64) string {
	return SKUPrefix + strconv.FormatInt(localID, 10)
}

// IsManagedSKU reports whether the SKU was derived by DeriveSKU.
func IsManagedSKU(sku string) bool {
	rest, ok := strings.CutPrefix(sku, SKUPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseInt(rest, 10, 64)
	return err == nil
}

// CategoryKey folds a category name for case-insensitive comparison.
// Returns "" for blank names.
func CategoryKey(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Fold().String(name)
}

// StockStatusFor derives availability from a quantity on hand.
func StockStatusFor(quantity int) StockStatus {
	if quantity > 0 {
		return StockStatusInStock
	}
	return StockStatusOutOfStock
}

// MediaMetadata derives the descriptive texts attached to an uploaded image.
func MediaMetadata(item LocalCatalogItem, position int) (title, caption, alt string) {
	title = item.Name
	if position > 0 {
		title = item.Name + " " + strconv.Itoa(position+1)
	}
	caption = item.Name
	if item.Description != "" {
		caption = item.Description
	}
	return title, caption, item.Name
}

// BuildProductPayload maps a local item to the full product payload.
// categoryID may be UncategorizedID, in which case no category is referenced.
func BuildProductPayload(item LocalCatalogItem, categoryID int64, images []MediaRef, status PublishStatus) RemoteProduct {
	if !status.IsValid() {
		status = PublishStatusPublish
	}
	quantity := item.Quantity
	if quantity < 0 {
		quantity = 0
	}

	p := RemoteProduct{
		SKU:              item.SKU(),
		Name:             strings.TrimSpace(item.Name),
		Description:      item.LongDescription,
		ShortDescription: item.Description,
		RegularPrice:     item.Price.String(),
		ManageStock:      true,
		StockQuantity:    quantity,
		StockStatus:      StockStatusFor(quantity),
		Status:           status,
		Categories:       []CategoryRef{},
		Images:           []MediaRef{},
		MetaData: []MetaData{
			{Key: ManagedMetaKey, Value: ManagedMetaValue},
			{Key: SourceMetaKey, Value: strconv.FormatInt(item.ID, 10)},
		},
	}
	if p.Description == "" {
		p.Description = item.Description
	}
	if categoryID != UncategorizedID {
		p.Categories = append(p.Categories, CategoryRef{ID: categoryID})
	}
	for _, img := range images {
		if img.ID != 0 || img.Src != "" {
			p.Images = append(p.Images, img)
		}
	}
	return p
}

// BuildStockPayload maps a local item to the quantity-only payload.
func BuildStockPayload(item LocalCatalogItem) StockUpdate {
	quantity := item.Quantity
	if quantity < 0 {
		quantity = 0
	}
	return StockUpdate{
		ManageStock:   true,
		StockQuantity: quantity,
		StockStatus:   StockStatusFor(quantity),
	}
}
