// Package models holds gorm persistence models.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
)

// SyncRunModel is a row of sync_runs
type SyncRunModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Operation  string    `gorm:"type:varchar(32);not null;index"`
	Status     string    `gorm:"type:varchar(16);not null;index"`
	Created    int       `gorm:"not null"`
	Updated    int       `gorm:"not null"`
	Deleted    int       `gorm:"not null"`
	Failed     int       `gorm:"not null"`
	Details    string    `gorm:"type:text;not null"`
	Error      string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt time.Time `gorm:"not null"`
}

// TableName returns the table name
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// SyncRunModelFromDomain builds a model from a sync run
func SyncRunModelFromDomain(run *catalogsync.SyncRun) (*SyncRunModel, error) {
	details := run.Details
	if details == nil {
		details = []catalogsync.ItemResult{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode sync run details: %w", err)
	}
	return &SyncRunModel{
		ID:         run.ID,
		Operation:  string(run.Operation),
		Status:     string(run.Status),
		Created:    run.Created,
		Updated:    run.Updated,
		Deleted:    run.Deleted,
		Failed:     run.Failed,
		Details:    string(raw),
		Error:      run.Error,
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
	}, nil
}

// ToDomain converts the row back into a sync run
func (m *SyncRunModel) ToDomain() (*catalogsync.SyncRun, error) {
	var details []catalogsync.ItemResult
	if m.Details != "" {
		if err := json.Unmarshal([]byte(m.Details), &details); err != nil {
			return nil, fmt.Errorf("decode sync run %s details: %w", m.ID, err)
		}
	}
	if details == nil {
		details = []catalogsync.ItemResult{}
	}
	return &catalogsync.SyncRun{
		ID:         m.ID,
		Operation:  catalogsync.Operation(m.Operation),
		Status:     catalogsync.SyncStatus(m.Status),
		Created:    m.Created,
		Updated:    m.Updated,
		Deleted:    m.Deleted,
		Failed:     m.Failed,
		Details:    details,
		Error:      m.Error,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}, nil
}
