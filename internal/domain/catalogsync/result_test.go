package catalogsync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestAggregator(t *testing.T) {
	t.Run("empty batch is a success", func(t *testing.T) {
		r := newAggregatorWithClock(OperationSyncProducts, fixedClock()).Result()
		assert.True(t, r.Success())
		assert.Equal(t, SyncStatusSuccess, r.Status)
		assert.NotNil(t, r.Details)
		assert.Empty(t, r.Details)
	})

	t.Run("all succeeded", func(t *testing.T) {
		a := NewAggregator(OperationSyncProducts)
		a.Add(ItemResult{LocalID: 1, Status: ItemStatusCreated})
		a.Add(ItemResult{LocalID: 2, Status: ItemStatusUpdated})
		r := a.Result()
		assert.Equal(t, 1, r.Created)
		assert.Equal(t, 1, r.Updated)
		assert.Equal(t, 0, r.Failed)
		assert.Equal(t, SyncStatusSuccess, r.Status)
		assert.True(t, r.Success())
	})

	t.Run("partial", func(t *testing.T) {
		a := NewAggregator(OperationSyncProducts)
		a.Add(ItemResult{LocalID: 1, Status: ItemStatusCreated})
		a.Add(FailedItem(2, "Broken", errors.New("boom")))
		a.Add(ItemResult{LocalID: 3, Status: ItemStatusUpdated})
		r := a.Result()
		assert.Equal(t, SyncStatusPartial, r.Status)
		assert.False(t, r.Success())
		assert.Len(t, r.Details, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{r.Details[0].LocalID, r.Details[1].LocalID, r.Details[2].LocalID})
		assert.Equal(t, "boom", r.Details[1].Error)
	})

	t.Run("total failure", func(t *testing.T) {
		a := NewAggregator(OperationUpdateStock)
		a.Add(FailedItem(1, "A", ErrConnectivity))
		a.Add(FailedItem(2, "B", ErrConnectivity))
		r := a.Result()
		assert.Equal(t, SyncStatusFailed, r.Status)
		assert.Equal(t, 2, r.Failed)
		assert.Equal(t, OperationUpdateStock, r.Operation)
	})

	t.Run("unknown status counts as failed", func(t *testing.T) {
		a := NewAggregator(OperationSyncProducts)
		a.Add(ItemResult{LocalID: 1, Status: ""})
		r := a.Result()
		assert.Equal(t, 1, r.Failed)
		assert.Equal(t, ItemStatusFailed, r.Details[0].Status)
	})

	t.Run("deleted counts as success", func(t *testing.T) {
		a := NewAggregator(OperationClearProducts)
		a.Add(ItemResult{RemoteID: 9, Status: ItemStatusDeleted})
		r := a.Result()
		assert.Equal(t, 1, r.Deleted)
		assert.Equal(t, SyncStatusSuccess, r.Status)
	})

	t.Run("aborted empty batch fails", func(t *testing.T) {
		a := NewAggregator(OperationClearProducts)
		a.Abort(ErrConnectivity)
		r := a.Result()
		assert.False(t, r.Success())
		assert.Equal(t, SyncStatusFailed, r.Status)
		assert.Equal(t, ErrConnectivity.Error(), r.Error)
	})

	t.Run("aborted after progress is partial", func(t *testing.T) {
		a := NewAggregator(OperationClearProducts)
		a.Add(ItemResult{RemoteID: 1, Status: ItemStatusDeleted})
		a.Abort(errors.New("listing failed"))
		r := a.Result()
		assert.Equal(t, SyncStatusPartial, r.Status)
		assert.False(t, r.Success())
	})

	t.Run("result is a snapshot", func(t *testing.T) {
		a := NewAggregator(OperationSyncProducts)
		a.Add(ItemResult{LocalID: 1, Status: ItemStatusCreated})
		r := a.Result()
		a.Add(ItemResult{LocalID: 2, Status: ItemStatusCreated})
		assert.Len(t, r.Details, 1)
	})
}

func TestSyncStatus_IsValid(t *testing.T) {
	assert.True(t, SyncStatusSuccess.IsValid())
	assert.True(t, SyncStatusPartial.IsValid())
	assert.True(t, SyncStatusFailed.IsValid())
	assert.False(t, SyncStatus("PENDING").IsValid())
	assert.Equal(t, "PARTIAL", SyncStatusPartial.String())
}

func TestNewSyncRun(t *testing.T) {
	a := newAggregatorWithClock(OperationSyncProducts, fixedClock())
	a.Add(ItemResult{LocalID: 1, Status: ItemStatusCreated})
	run := NewSyncRun(a.Result())
	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))
	assert.Equal(t, OperationSyncProducts, run.Operation)
	assert.Equal(t, SyncStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Created)
	assert.Len(t, run.Details, 1)
}
