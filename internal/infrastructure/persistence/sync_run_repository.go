package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 100
)

// GormSyncRunRepository implements catalogsync.SyncRunRepository on gorm
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a sync run repository
func NewSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

var _ catalogsync.SyncRunRepository = (*GormSyncRunRepository)(nil)

// Save inserts a run
func (r *GormSyncRunRepository) Save(ctx context.Context, run *catalogsync.SyncRun) error {
	model, err := models.SyncRunModelFromDomain(run)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("save sync run %s: %w", run.ID, err)
	}
	return nil
}

// FindByID returns ErrSyncRunNotFound for unknown ids
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error) {
	var model models.SyncRunModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogsync.ErrSyncRunNotFound
		}
		return nil, fmt.Errorf("find sync run %s: %w", id, err)
	}
	return model.ToDomain()
}

// List returns a page of runs, most recent first, and the total matching count
func (r *GormSyncRunRepository) List(ctx context.Context, filter catalogsync.SyncRunFilter) ([]catalogsync.SyncRun, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sync runs: %w", err)
	}

	var rows []models.SyncRunModel
	err := r.filtered(ctx, filter).
		Order("started_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list sync runs: %w", err)
	}

	runs := make([]catalogsync.SyncRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, nil
}

// DeleteStartedBefore removes runs older than cutoff
func (r *GormSyncRunRepository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.SyncRunModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune sync runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormSyncRunRepository) filtered(ctx context.Context, filter catalogsync.SyncRunFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if filter.Operation != "" {
		query = query.Where("operation = ?", string(filter.Operation))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	return query
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = defaultRunPageSize
	case size > maxRunPageSize:
		size = maxRunPageSize
	}
	return page, size
}
