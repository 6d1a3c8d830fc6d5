package dto

import (
	"time"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/shopspring/decimal"
)

// CatalogItemRequest is one local inventory record in a sync request.
// Field rules are checked per item by the engine so a bad item fails alone.
type CatalogItemRequest struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	LongDescription  string          `json:"long_description"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int             `json:"quantity"`
	Category         string          `json:"category"`
	PrimaryImage     string          `json:"primary_image"`
	AdditionalImages []string        `json:"additional_images"`
}

// ToDomain converts the request into a catalog item
func (r CatalogItemRequest) ToDomain() catalogsync.LocalCatalogItem {
	images := make([]catalogsync.ImageSource, 0, len(r.AdditionalImages))
	for _, img := range r.AdditionalImages {
		images = append(images, catalogsync.ImageSource(img))
	}
	return catalogsync.LocalCatalogItem{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		LongDescription:  r.LongDescription,
		Price:            r.Price,
		Quantity:         r.Quantity,
		Category:         r.Category,
		PrimaryImage:     catalogsync.ImageSource(r.PrimaryImage),
		AdditionalImages: images,
	}
}

// SyncItemsRequest carries a batch of items. An empty batch is accepted.
type SyncItemsRequest struct {
	Items []CatalogItemRequest `json:"items" binding:"max=1000"`
}

// ToDomain converts all items preserving order
func (r SyncItemsRequest) ToDomain() []catalogsync.LocalCatalogItem {
	items := make([]catalogsync.LocalCatalogItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, it.ToDomain())
	}
	return items
}

// SyncSelectedRequest carries the full collection plus the chosen positions.
// Out-of-range positions, negative ones included, come back as failed details.
type SyncSelectedRequest struct {
	Items   []CatalogItemRequest `json:"items" binding:"max=1000"`
	Indices []int                `json:"indices" binding:"required,min=1"`
}

// ToDomain converts the items preserving order
func (r SyncSelectedRequest) ToDomain() []catalogsync.LocalCatalogItem {
	return SyncItemsRequest{Items: r.Items}.ToDomain()
}

// EnsureWebhookRequest optionally overrides the configured delivery URL
type EnsureWebhookRequest struct {
	TargetURL string `json:"target_url" binding:"omitempty,url"`
}

// ListRunsQuery filters the sync run history
type ListRunsQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Operation string `form:"operation" binding:"omitempty,oneof=sync_products sync_selected update_stock clear_managed_products"`
	Status    string `form:"status" binding:"omitempty,oneof=SUCCESS PARTIAL FAILED"`
}

// ToFilter converts the query into a repository filter with defaults applied
func (q ListRunsQuery) ToFilter() catalogsync.SyncRunFilter {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}
	return catalogsync.SyncRunFilter{
		Operation: catalogsync.Operation(q.Operation),
		Status:    catalogsync.SyncStatus(q.Status),
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// SyncRunResponse is a recorded batch execution
type SyncRunResponse struct {
	ID         string                   `json:"id"`
	Operation  string                   `json:"operation"`
	Status     string                   `json:"status"`
	Created    int                      `json:"created"`
	Updated    int                      `json:"updated"`
	Deleted    int                      `json:"deleted"`
	Failed     int                      `json:"failed"`
	Error      string                   `json:"error,omitempty"`
	Details    []catalogsync.ItemResult `json:"details,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	DurationMS int64                    `json:"duration_ms"`
}

// ToSyncRunResponse converts a run. Details are included only when withDetails is set.
func ToSyncRunResponse(run *catalogsync.SyncRun, withDetails bool) SyncRunResponse {
	resp := SyncRunResponse{
		ID:         run.ID.String(),
		Operation:  string(run.Operation),
		Status:     run.Status.String(),
		Created:    run.Created,
		Updated:    run.Updated,
		Deleted:    run.Deleted,
		Failed:     run.Failed,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMS: run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}
	if withDetails {
		resp.Details = run.Details
	}
	return resp
}

// ToSyncRunResponses converts a page of runs without details
func ToSyncRunResponses(runs []catalogsync.SyncRun) []SyncRunResponse {
	out := make([]SyncRunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, ToSyncRunResponse(&runs[i], false))
	}
	return out
}

// WebhookAck answers a platform delivery
type WebhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ping      bool   `json:"ping,omitempty"`
	Topic     string `json:"topic,omitempty"`
}
