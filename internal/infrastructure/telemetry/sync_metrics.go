package telemetry

import (
	"context"
	"time"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys on sync instruments
var (
	AttrOperation = attribute.Key("operation")
	AttrStatus    = attribute.Key("status")
	AttrResult    = attribute.Key("result")
)

// Instrument names
const (
	MetricItemsTotal        = "catsync_items_total"
	MetricBatchesTotal      = "catsync_batches_total"
	MetricBatchDuration     = "catsync_batch_duration_seconds"
	MetricMediaUploadsTotal = "catsync_media_uploads_total"
)

// SyncMetrics records engine outcomes as OpenTelemetry instruments.
type SyncMetrics struct {
	items    *Counter
	batches  *Counter
	duration *Histogram
	media    *Counter
}

// NewSyncMetrics registers the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	items, err := NewCounter(meter, MetricItemsTotal, "Catalog items processed, by operation and outcome", "{item}")
	if err != nil {
		return nil, err
	}
	batches, err := NewCounter(meter, MetricBatchesTotal, "Sync batches finished, by operation and status", "{batch}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        MetricBatchDuration,
		Description: "Wall time of a sync batch",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	media, err := NewCounter(meter, MetricMediaUploadsTotal, "Image references resolved, by result", "{image}")
	if err != nil {
		return nil, err
	}
	return &SyncMetrics{items: items, batches: batches, duration: duration, media: media}, nil
}

// RecordItem counts one item outcome
func (m *SyncMetrics) RecordItem(ctx context.Context, op catalogsync.Operation, status catalogsync.ItemStatus) {
	m.items.Inc(ctx, AttrOperation.String(string(op)), AttrStatus.String(string(status)))
}

// RecordBatch counts a finished batch and its duration
func (m *SyncMetrics) RecordBatch(ctx context.Context, op catalogsync.Operation, status catalogsync.SyncStatus, d time.Duration) {
	attrs := []attribute.KeyValue{AttrOperation.String(string(op)), AttrStatus.String(string(status))}
	m.batches.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, d, attrs...)
}

// RecordMediaUpload counts one image resolution
func (m *SyncMetrics) RecordMediaUpload(ctx context.Context, outcome string) {
	m.media.Inc(ctx, AttrResult.String(outcome))
}
