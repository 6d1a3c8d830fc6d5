package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"github.com/pdv/catalogsync/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSyncRunTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.SyncRunModel{}))
	return db
}

func newRun(op catalogsync.Operation, status catalogsync.SyncStatus, started time.Time) *catalogsync.SyncRun {
	return &catalogsync.SyncRun{
		ID:        uuid.New(),
		Operation: op,
		Status:    status,
		Created:   1,
		Failed:    1,
		Details: []catalogsync.ItemResult{
			{LocalID: 1, RemoteID: 501, Status: catalogsync.ItemStatusCreated, Name: "Mouse"},
			{LocalID: 2, Status: catalogsync.ItemStatusFailed, Name: "Cable", Error: "catalogsync: product upsert failed"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
}

func TestSyncRunRepository_SaveAndFind(t *testing.T) {
	repo := NewSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	run := newRun(catalogsync.OperationSyncProducts, catalogsync.SyncStatusPartial, started)
	require.NoError(t, repo.Save(ctx, run))

	found, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, found.ID)
	assert.Equal(t, catalogsync.OperationSyncProducts, found.Operation)
	assert.Equal(t, catalogsync.SyncStatusPartial, found.Status)
	assert.Equal(t, 1, found.Created)
	assert.Equal(t, 1, found.Failed)
	assert.Equal(t, run.Details, found.Details)
	assert.True(t, started.Equal(found.StartedAt))
	assert.True(t, started.Add(3*time.Second).Equal(found.FinishedAt))
}

func TestSyncRunRepository_FindByID_NotFound(t *testing.T) {
	repo := NewSyncRunRepository(setupSyncRunTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, catalogsync.ErrSyncRunNotFound)
}

func TestSyncRunRepository_SaveWithoutDetails(t *testing.T) {
	repo := NewSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()

	run := &catalogsync.SyncRun{
		ID:         uuid.New(),
		Operation:  catalogsync.OperationClearProducts,
		Status:     catalogsync.SyncStatusFailed,
		Error:      "catalogsync: platform unreachable",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, run))

	found, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Details)
	assert.NotNil(t, found.Details)
	assert.Equal(t, "catalogsync: platform unreachable", found.Error)
}

func TestSyncRunRepository_List(t *testing.T) {
	repo := NewSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i, op := range []catalogsync.Operation{
		catalogsync.OperationSyncProducts,
		catalogsync.OperationUpdateStock,
		catalogsync.OperationSyncProducts,
		catalogsync.OperationSyncProducts,
	} {
		status := catalogsync.SyncStatusSuccess
		if i == 2 {
			status = catalogsync.SyncStatusFailed
		}
		run := newRun(op, status, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Save(ctx, run))
		ids = append(ids, run.ID)
	}

	t.Run("most recent first", func(t *testing.T) {
		runs, total, err := repo.List(ctx, catalogsync.SyncRunFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, runs, 4)
		assert.Equal(t, ids[3], runs[0].ID)
		assert.Equal(t, ids[0], runs[3].ID)
	})

	t.Run("filter by operation", func(t *testing.T) {
		runs, total, err := repo.List(ctx, catalogsync.SyncRunFilter{Operation: catalogsync.OperationSyncProducts})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, runs, 3)
	})

	t.Run("filter by operation and status", func(t *testing.T) {
		runs, total, err := repo.List(ctx, catalogsync.SyncRunFilter{
			Operation: catalogsync.OperationSyncProducts,
			Status:    catalogsync.SyncStatusFailed,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, runs, 1)
		assert.Equal(t, ids[2], runs[0].ID)
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		runs, total, err := repo.List(ctx, catalogsync.SyncRunFilter{Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, runs, 1)
		assert.Equal(t, ids[0], runs[0].ID)
	})
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name             string
		page, size       int
		wantPage, wantSz int
	}{
		{"defaults", 0, 0, 1, 20},
		{"kept", 3, 50, 3, 50},
		{"capped", 1, 500, 1, 100},
		{"negative page", -2, 10, 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := normalizePage(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p)
			assert.Equal(t, tt.wantSz, s)
		})
	}
}

func TestSyncRunRepository_DatabaseErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	repo := NewSyncRunRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sync_runs" WHERE id = $1`)).
		WillReturnError(errors.New("relation \"sync_runs\" does not exist"))
	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorContains(t, err, "find sync run")
	assert.NotErrorIs(t, err, catalogsync.ErrSyncRunNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "sync_runs"`)).
		WillReturnError(errors.New("connection reset"))
	_, _, err = repo.List(ctx, catalogsync.SyncRunFilter{})
	assert.ErrorContains(t, err, "count sync runs")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "sync_runs"`)).
		WillReturnError(errors.New("duplicate key"))
	err = repo.Save(ctx, newRun(catalogsync.OperationSyncProducts, catalogsync.SyncStatusSuccess, time.Now()))
	assert.ErrorContains(t, err, "save sync run")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRunRepository_DeleteStartedBefore(t *testing.T) {
	repo := NewSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := newRun(catalogsync.OperationUpdateStock, catalogsync.SyncStatusSuccess, base.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, repo.Save(ctx, run))
	}

	removed, err := repo.DeleteStartedBefore(ctx, base.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, total, err := repo.List(ctx, catalogsync.SyncRunFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	removed, err = repo.DeleteStartedBefore(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
