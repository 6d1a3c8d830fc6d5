package catalogsync

import (
	"context"
	"fmt"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.opentelemetry.io/otel/attribute"
)

// UpdateStock writes quantity and availability for each item that already
// exists remotely. Categories and media are left untouched.
func (s *Service) UpdateStock(ctx context.Context, items []catalogsync.LocalCatalogItem) *catalogsync.SyncBatchResult {
	ctx, span := s.tracer.Start(ctx, "catalogsync.UpdateStock")
	defer span.End()
	span.SetAttributes(attribute.Int("catalogsync.items", len(items)))

	agg := catalogsync.NewAggregator(catalogsync.OperationUpdateStock)
	if err := s.gate(ctx, catalogsync.OperationUpdateStock); err != nil {
		span.RecordError(err)
		abandon(agg, items, err)
		return s.finish(ctx, agg.Result())
	}
	ctx = context.WithoutCancel(ctx)

	s.labels.Do(ctx, catalogsync.OperationUpdateStock, func(ctx context.Context) {
		for _, item := range items {
			agg.Add(s.updateStockOne(ctx, item))
		}
	})
	return s.finish(ctx, agg.Result())
}

func (s *Service) updateStockOne(ctx context.Context, item catalogsync.LocalCatalogItem) (result catalogsync.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
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
	if existing == nil {
		return s.itemFailure(item, fmt.Errorf("%w: %s", catalogsync.ErrProductNotFound, sku))
	}

	updated, err := s.platform.UpdateStock(ctx, existing.ID, catalogsync.BuildStockPayload(item))
	if err != nil {
		return s.itemFailure(item, fmt.Errorf("%w: stock %s: %v", catalogsync.ErrProductUpsert, sku, err))
	}
	return catalogsync.ItemResult{LocalID: item.ID, RemoteID: remoteID(updated, existing.ID), Status: catalogsync.ItemStatusUpdated, Name: item.Name}
}
