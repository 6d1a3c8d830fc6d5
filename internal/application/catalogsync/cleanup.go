package catalogsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxCleanupPages bounds the listing walk
const maxCleanupPages = 1000

// ClearManagedProducts permanently deletes every remote product owned by
// this system. Products without the ownership marker are never touched.
func (s *Service) ClearManagedProducts(ctx context.Context) *catalogsync.SyncBatchResult {
	ctx, span := s.tracer.Start(ctx, "catalogsync.ClearManagedProducts")
	defer span.End()

	agg := catalogsync.NewAggregator(catalogsync.OperationClearProducts)
	if err := s.gate(ctx, catalogsync.OperationClearProducts); err != nil {
		span.RecordError(err)
		agg.Abort(err)
		return s.finish(ctx, agg.Result())
	}
	ctx = context.WithoutCancel(ctx)

	managed, err := s.listManaged(ctx)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to list managed products", zap.Error(err))
		agg.Abort(err)
	}
	span.SetAttributes(attribute.Int("catalogsync.items", len(managed)))

	// listing completes before the first delete so paging is not shifted
	s.labels.Do(ctx, catalogsync.OperationClearProducts, func(ctx context.Context) {
		for _, p := range managed {
			agg.Add(s.deleteOne(ctx, p))
		}
	})
	return s.finish(ctx, agg.Result())
}

func (s *Service) listManaged(ctx context.Context) ([]catalogsync.RemoteProduct, error) {
	perPage := s.config.CleanupPageSize
	var managed []catalogsync.RemoteProduct
	for page := 1; page <= maxCleanupPages; page++ {
		products, err := s.platform.ListProducts(ctx, page, perPage)
		if err != nil {
			return managed, fmt.Errorf("list products page %d: %w", page, err)
		}
		for _, p := range products {
			if p.IsManaged() {
				managed = append(managed, p)
			}
		}
		if len(products) < perPage {
			break
		}
	}
	return managed, nil
}

func (s *Service) deleteOne(ctx context.Context, p catalogsync.RemoteProduct) (result catalogsync.ItemResult) {
	localID := localIDOf(p)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while deleting product", zap.Int64("remote_id", p.ID), zap.Any("panic", r))
			result = catalogsync.FailedItem(localID, p.Name, fmt.Errorf("%w: %v", catalogsync.ErrProductDelete, r))
			result.RemoteID = p.ID
		}
	}()

	if err := s.platform.DeleteProduct(ctx, p.ID); err != nil {
		s.logger.Warn("delete failed", zap.Int64("remote_id", p.ID), zap.String("sku", p.SKU), zap.Error(err))
		r := catalogsync.FailedItem(localID, p.Name, fmt.Errorf("%w: delete %d: %v", catalogsync.ErrProductDelete, p.ID, err))
		r.RemoteID = p.ID
		return r
	}
	return catalogsync.ItemResult{LocalID: localID, RemoteID: p.ID, Status: catalogsync.ItemStatusDeleted, Name: p.Name}
}

// localIDOf recovers the local identifier from the ownership metadata or SKU.
func localIDOf(p catalogsync.RemoteProduct) int64 {
	for _, m := range p.MetaData {
		if m.Key != catalogsync.SourceMetaKey {
			continue
		}
		switch v := m.Value.(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id
			}
		}
	}
	if catalogsync.IsManagedSKU(p.SKU) {
		id, _ := strconv.ParseInt(strings.TrimPrefix(p.SKU, catalogsync.SKUPrefix), 10, 64)
		return id
	}
	return 0
}
