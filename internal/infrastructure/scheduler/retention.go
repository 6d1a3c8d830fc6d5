// Package scheduler runs background maintenance jobs for the sync service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunPruner deletes recorded sync runs older than a cutoff
type RunPruner interface {
	DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig holds configuration for the run history pruner
type RetentionConfig struct {
	// Retention is how long runs are kept. Zero or negative disables pruning.
	Retention time.Duration

	// Interval between pruning passes
	Interval time.Duration

	// Timeout bounds a single pass
	Timeout time.Duration
}

// DefaultRetentionConfig returns default configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Retention: 30 * 24 * time.Hour,
		Interval:  time.Hour,
		Timeout:   time.Minute,
	}
}

// RetentionScheduler periodically prunes sync run history
type RetentionScheduler struct {
	pruner RunPruner
	config RetentionConfig
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(pruner RunPruner, config RetentionConfig, logger *zap.Logger) *RetentionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRetentionConfig().Timeout
	}
	return &RetentionScheduler{
		pruner: pruner,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the pruning loop. The first pass runs immediately.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	if s.config.Retention <= 0 {
		s.logger.Info("Sync run retention is disabled")
		return nil
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Sync run retention scheduler started",
		zap.Duration("retention", s.config.Retention),
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *RetentionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync run retention scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync run retention scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// PruneOnce deletes runs started before now minus the retention window
func (s *RetentionScheduler) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.Retention)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	removed, err := s.pruner.DeleteStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPruneFailed, err)
	}
	return removed, nil
}

func (s *RetentionScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.execute(ctx)

		select {
		case <-ctx.Done():
			s.logger.Debug("Retention loop stopping")
			return
		case <-ticker.C:
		}
	}
}

func (s *RetentionScheduler) execute(ctx context.Context) {
	removed, err := s.PruneOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Failed to prune sync runs", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Pruned sync runs", zap.Int64("removed", removed))
	}
}
