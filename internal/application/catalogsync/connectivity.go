package catalogsync

import (
	"context"
	"fmt"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// Check names reported in ConnectionStatus
const (
	CheckRoot       = "root"
	CheckCategories = "categories"
)

// CheckConnection requests the platform root, falling back once to the
// categories listing.
func (s *Service) CheckConnection(ctx context.Context) catalogsync.ConnectionStatus {
	ctx, span := s.tracer.Start(ctx, "catalogsync.CheckConnection")
	defer span.End()

	rootErr := s.platform.PingRoot(ctx)
	if rootErr == nil {
		return catalogsync.ConnectionStatus{Reachable: true, Via: CheckRoot, Details: "root resource reachable"}
	}

	s.logger.Debug("root check failed, trying categories listing", zap.Error(rootErr))
	fallbackErr := s.platform.PingCategories(ctx)
	if fallbackErr == nil {
		return catalogsync.ConnectionStatus{
			Reachable: true,
			Via:       CheckCategories,
			Details:   fmt.Sprintf("root check failed (%v); categories listing reachable", rootErr),
		}
	}

	span.RecordError(fallbackErr)
	s.logger.Warn("platform unreachable",
		zap.NamedError("root_error", rootErr),
		zap.NamedError("fallback_error", fallbackErr),
	)
	return catalogsync.ConnectionStatus{
		Reachable: false,
		Details:   fmt.Sprintf("root check: %v; categories check: %v", rootErr, fallbackErr),
	}
}

// gate runs the connectivity check before a batch. It returns a non-nil
// error wrapping ErrConnectivity when the batch must be abandoned.
func (s *Service) gate(ctx context.Context, op catalogsync.Operation) error {
	status := s.CheckConnection(ctx)
	if status.Reachable {
		return nil
	}
	s.logger.Warn("batch abandoned by connectivity gate", zap.String("operation", string(op)))
	return fmt.Errorf("%w: %s", catalogsync.ErrConnectivity, status.Details)
}

// abandon records every item as failed with the connectivity reason.
func abandon(agg *catalogsync.Aggregator, items []catalogsync.LocalCatalogItem, err error) {
	agg.Abort(err)
	for _, item := range items {
		agg.Add(catalogsync.FailedItem(item.ID, item.Name, err))
	}
}
