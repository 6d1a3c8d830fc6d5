package catalogsync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/pdv/catalogsync/internal/application/catalogsync"

// Config holds the tunables of the synchronization engine
type Config struct {
	// CategoryPageSize bounds the single page of categories fetched per batch
	CategoryPageSize int
	// CleanupPageSize is the page size used while listing products for cleanup
	CleanupPageSize int
	// PublishStatus is written on every upserted product
	PublishStatus catalogsync.PublishStatus
	// MediaChunkSize is the slice size used to reassemble embedded payloads
	MediaChunkSize int
	// MediaMaxBytes caps a single decoded image
	MediaMaxBytes int
	// WebhookTopic is the lifecycle event webhooks are bound to
	WebhookTopic string
	// WebhookName labels created webhooks
	WebhookName string
	// WebhookSecret is the shared secret used to sign deliveries
	WebhookSecret string
}

// Defaults
const (
	DefaultCategoryPageSize = 100
	DefaultCleanupPageSize  = 100
	DefaultMediaChunkSize   = 512 * 1024
	DefaultMediaMaxBytes    = 10 * 1024 * 1024
	DefaultWebhookTopic     = "product.updated"
	DefaultWebhookName      = "POS catalog sync"
)

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		CategoryPageSize: DefaultCategoryPageSize,
		CleanupPageSize:  DefaultCleanupPageSize,
		PublishStatus:    catalogsync.PublishStatusPublish,
		MediaChunkSize:   DefaultMediaChunkSize,
		MediaMaxBytes:    DefaultMediaMaxBytes,
		WebhookTopic:     DefaultWebhookTopic,
		WebhookName:      DefaultWebhookName,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.CategoryPageSize <= 0 {
		c.CategoryPageSize = d.CategoryPageSize
	}
	if c.CleanupPageSize <= 0 {
		c.CleanupPageSize = d.CleanupPageSize
	}
	if !c.PublishStatus.IsValid() {
		c.PublishStatus = d.PublishStatus
	}
	if c.MediaChunkSize <= 0 {
		c.MediaChunkSize = d.MediaChunkSize
	}
	if c.MediaMaxBytes <= 0 {
		c.MediaMaxBytes = d.MediaMaxBytes
	}
	if c.WebhookTopic == "" {
		c.WebhookTopic = d.WebhookTopic
	}
	if c.WebhookName == "" {
		c.WebhookName = d.WebhookName
	}
}

// Metrics records engine outcomes
type Metrics interface {
	RecordItem(ctx context.Context, op catalogsync.Operation, status catalogsync.ItemStatus)
	RecordBatch(ctx context.Context, op catalogsync.Operation, status catalogsync.SyncStatus, duration time.Duration)
	RecordMediaUpload(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordItem(context.Context, catalogsync.Operation, catalogsync.ItemStatus) {}
func (noopMetrics) RecordBatch(context.Context, catalogsync.Operation, catalogsync.SyncStatus, time.Duration) {
}
func (noopMetrics) RecordMediaUpload(context.Context, string) {}

// ProfileLabeler runs fn with profiling labels describing the operation
type ProfileLabeler interface {
	Do(ctx context.Context, op catalogsync.Operation, fn func(context.Context))
}

type noopLabeler struct{}

func (noopLabeler) Do(ctx context.Context, _ catalogsync.Operation, fn func(context.Context)) {
	fn(ctx)
}

// Service is the catalog synchronization engine.
// Entry points: SyncProducts, SyncSelected, UpdateStock, ClearManagedProducts,
// EnsureWebhook and CheckConnection.
type Service struct {
	platform catalogsync.CatalogPlatform
	config   Config
	media    *mediaUploader
	runs     catalogsync.SyncRunRepository
	metrics  Metrics
	labels   ProfileLabeler
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithImageStore enables s3:// image references
func WithImageStore(store catalogsync.ImageStore) Option {
	return func(s *Service) {
		s.media.images = store
	}
}

// WithRunRepository enables sync run history
func WithRunRepository(repo catalogsync.SyncRunRepository) Option {
	return func(s *Service) {
		s.runs = repo
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProfileLabeler tags per-item work with the operation in CPU profiles
func WithProfileLabeler(l ProfileLabeler) Option {
	return func(s *Service) {
		if l != nil {
			s.labels = l
		}
	}
}

// WithTracer sets the tracer; the global provider is used otherwise
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// NewService creates the engine. creds may be nil, in which case embedded
// images are never uploaded.
func NewService(platform catalogsync.CatalogPlatform, creds catalogsync.CredentialProvider, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		platform: platform,
		config:   cfg,
		metrics:  noopMetrics{},
		labels:   noopLabeler{},
		tracer:   otel.Tracer(tracerName),
		logger:   zap.NewNop(),
	}
	s.media = newMediaUploader(platform, creds, cfg.MediaChunkSize, cfg.MediaMaxBytes)
	for _, opt := range opts {
		opt(s)
	}
	s.media.logger = s.logger
	s.media.metrics = s.metrics
	return s
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.config
}

// ---------------------------------------------------------------------------
// Sync run history
// ---------------------------------------------------------------------------

// GetRun returns a recorded sync run
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error) {
	if s.runs == nil {
		return nil, catalogsync.ErrSyncRunNotFound
	}
	return s.runs.FindByID(ctx, id)
}

// ListRuns lists recorded sync runs, most recent first
func (s *Service) ListRuns(ctx context.Context, filter catalogsync.SyncRunFilter) ([]catalogsync.SyncRun, int64, error) {
	if s.runs == nil {
		return []catalogsync.SyncRun{}, 0, nil
	}
	return s.runs.List(ctx, filter)
}

// finish records metrics and history for a finished batch
func (s *Service) finish(ctx context.Context, result *catalogsync.SyncBatchResult) *catalogsync.SyncBatchResult {
	for _, d := range result.Details {
		s.metrics.RecordItem(ctx, result.Operation, d.Status)
	}
	s.metrics.RecordBatch(ctx, result.Operation, result.Status, result.FinishedAt.Sub(result.StartedAt))

	if s.runs != nil {
		run := catalogsync.NewSyncRun(result)
		if err := s.runs.Save(ctx, run); err != nil {
			s.logger.Error("failed to record sync run",
				zap.String("operation", string(result.Operation)),
				zap.Error(err),
			)
		} else {
			result.RunID = run.ID.String()
		}
	}

	s.logger.Info("sync batch finished",
		zap.String("operation", string(result.Operation)),
		zap.String("status", result.Status.String()),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result
}
