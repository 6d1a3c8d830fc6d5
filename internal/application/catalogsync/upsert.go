package catalogsync

import (
	"context"
	"fmt"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SyncProducts pushes every item to the platform, creating or updating by SKU.
// Items are processed sequentially and details keep the input order.
func (s *Service) SyncProducts(ctx context.Context, items []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult {
	return s.syncBatch(ctx, catalogsync.OperationSyncProducts, items)
}

// SyncSelected pushes the items at the given indices. Details follow the
// order of indices: out-of-range indices become failed entries at their
// position and repeated indices are pushed once.
func (s *Service) SyncSelected(ctx context.Context, items []catalogsync.LocalCatalogItem, indices []int) *catalogsync.SyncBatchResult {
	plan := make([]planEntry, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(items) {
			plan = append(plan, planEntry{err: fmt.Errorf("%w: selection index %d out of range", catalogsync.ErrInvalidItem, idx)})
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		plan = append(plan, planEntry{item: items[idx]})
	}
	return s.runUpserts(ctx, catalogsync.OperationSyncSelected, plan)
}

// planEntry is one slot of a batch: an item to push, or a selection error
// reported in its place.
type planEntry struct {
	item catalogsync.LocalCatalogItem
	err  error
}

func (s *Service) syncBatch(ctx context.Context, op catalogsync.Operation, items []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult {
	plan := make([]planEntry, len(items))
	for i, item := range items {
		plan[i] = planEntry{item: item}
	}
	return s.runUpserts(ctx, op, plan)
}

func (s *Service) runUpserts(ctx context.Context, op catalogsync.Operation, plan []planEntry) *catalogsync.SyncBatchResult {
	ctx, span := s.tracer.Start(ctx, "catalogsync."+string(op))
	defer span.End()
	span.SetAttributes(attribute.Int("catalogsync.items", len(plan)))

	agg := catalogsync.NewAggregator(op)
	items := make([]catalogsync.LocalCatalogItem, 0, len(plan))
	for _, e := range plan {
		if e.err == nil {
			items = append(items, e.item)
		}
	}

	if err := s.gate(ctx, op); err != nil {
		span.RecordError(err)
		agg.Abort(err)
		for _, e := range plan {
			if e.err != nil {
				agg.Add(catalogsync.FailedItem(0, "", e.err))
				continue
			}
			agg.Add(catalogsync.FailedItem(e.item.ID, e.item.Name, err))
		}
		return s.finish(ctx, agg.Result())
	}

	// past the gate the batch runs to completion
	ctx = context.WithoutCancel(ctx)

	categories := s.EnsureCategories(ctx, categoryNames(items))
	media := s.media.session()
	s.labels.Do(ctx, op, func(ctx context.Context) {
		for _, e := range plan {
			if e.err != nil {
				agg.Add(catalogsync.FailedItem(0, "", e.err))
				continue
			}
			agg.Add(s.processOne(ctx, e.item, categories, media))
		}
	})
	return s.finish(ctx, agg.Result())
}

// processOne upserts a single item. It never panics and never returns an
// error; every failure is folded into the returned ItemResult.
func (s *Service) processOne(ctx context.Context, item catalogsync.LocalCatalogItem, categories CategoryMap, media *mediaSession) (result catalogsync.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing item", zap.Int64("local_id", item.ID), zap.Any("panic", r))
			result = catalogsync.FailedItem(item.ID, item.Name, fmt.Errorf("%w: %v", catalogsync.ErrProductUpsert, r))
		}
	}()

	if err := item.Validate(); err != nil {
		return catalogsync.FailedItem(item.ID, item.Name, err)
	}

	sku := item.SKU()
	existing, err := s.platform.FindProductBySKU(ctx, sku)
	if err != nil {
		return s.itemFailure(item, fmt.Errorf("%w: lookup %s: %v", catalogsync.ErrProductUpsert, sku, err))
	}

	images := media.Resolve(ctx, item)
	payload := catalogsync.BuildProductPayload(item, categories.Lookup(item.Category), images, s.config.PublishStatus)

	if existing != nil {
		updated, err := s.platform.UpdateProduct(ctx, existing.ID, payload)
		if err != nil {
			return s.itemFailure(item, fmt.Errorf("%w: update %s: %v", catalogsync.ErrProductUpsert, sku, err))
		}
		return catalogsync.ItemResult{LocalID: item.ID, RemoteID: remoteID(updated, existing.ID), Status: catalogsync.ItemStatusUpdated, Name: item.Name}
	}

	created, err := s.platform.CreateProduct(ctx, payload)
	if err != nil {
		return s.itemFailure(item, fmt.Errorf("%w: create %s: %v", catalogsync.ErrProductUpsert, sku, err))
	}
	return catalogsync.ItemResult{LocalID: item.ID, RemoteID: remoteID(created, 0), Status: catalogsync.ItemStatusCreated, Name: item.Name}
}

func (s *Service) itemFailure(item catalogsync.LocalCatalogItem, err error) catalogsync.ItemResult {
	s.logger.Warn("item failed",
		zap.Int64("local_id", item.ID),
		zap.String("sku", item.SKU()),
		zap.Error(err),
	)
	return catalogsync.FailedItem(item.ID, item.Name, err)
}

func remoteID(p *catalogsync.RemoteProduct, fallback int64) int64 {
	if p == nil || p.ID == 0 {
		return fallback
	}
	return p.ID
}
