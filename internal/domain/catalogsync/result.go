package catalogsync

import "time"

// ---------------------------------------------------------------------------
// Item outcome
// ---------------------------------------------------------------------------

// ItemStatus is the outcome of a single item in a batch
type ItemStatus string

const (
	ItemStatusCreated ItemStatus = "created"
	ItemStatusUpdated ItemStatus = "updated"
	ItemStatusDeleted ItemStatus = "deleted"
	ItemStatusFailed  ItemStatus = "failed"
)

// ItemResult is the outcome of processing one item.
type ItemResult struct {
	LocalID  int64      `json:"local_id"`
	RemoteID int64      `json:"remote_id,omitempty"`
	Status   ItemStatus `json:"status"`
	Name     string     `json:"name"`
	Error    string     `json:"error,omitempty"`
}

// FailedItem builds a failed result for the item.
func FailedItem(localID int64, name string, err error) ItemResult {
	r := ItemResult{LocalID: localID, Name: name, Status: ItemStatusFailed}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// ---------------------------------------------------------------------------
// Batch outcome
// ---------------------------------------------------------------------------

// SyncStatus summarizes a batch
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// IsValid checks if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed:
		return true
	}
	return false
}

// String returns the string representation
func (s SyncStatus) String() string {
	return string(s)
}

// Operation names a batch entry point
type Operation string

const (
	OperationSyncProducts  Operation = "sync_products"
	OperationSyncSelected  Operation = "sync_selected"
	OperationUpdateStock   Operation = "update_stock"
	OperationClearProducts Operation = "clear_managed_products"
)

// SyncBatchResult is the single aggregated result returned by every batch operation.
type SyncBatchResult struct {
	Operation Operation    `json:"operation"`
	Status    SyncStatus   `json:"status"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Deleted   int          `json:"deleted"`
	Failed    int          `json:"failed"`
	Details   []ItemResult `json:"details"`

	// Error carries a batch-wide failure such as the connectivity gate
	Error string `json:"error,omitempty"`
	// RunID identifies the recorded sync run, when history is enabled
	RunID string `json:"run_id,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Success reports whether no item failed and the batch was not aborted.
func (r *SyncBatchResult) Success() bool {
	return r.Failed == 0 && r.Error == ""
}

// Succeeded returns the number of items that reached the remote side.
func (r *SyncBatchResult) Succeeded() int {
	return r.Created + r.Updated + r.Deleted
}

// Aggregator folds item results into a SyncBatchResult, keeping input order.
type Aggregator struct {
	result SyncBatchResult
	now    func() time.Time
}

// NewAggregator starts a batch for the given operation.
func NewAggregator(op Operation) *Aggregator {
	return newAggregatorWithClock(op, time.Now)
}

func newAggregatorWithClock(op Operation, now func() time.Time) *Aggregator {
	return &Aggregator{
		result: SyncBatchResult{
			Operation: op,
			Details:   make([]ItemResult, 0),
			StartedAt: now(),
		},
		now: now,
	}
}

// Add folds one item result.
func (a *Aggregator) Add(item ItemResult) {
	switch item.Status {
	case ItemStatusCreated:
		a.result.Created++
	case ItemStatusUpdated:
		a.result.Updated++
	case ItemStatusDeleted:
		a.result.Deleted++
	default:
		item.Status = ItemStatusFailed
		a.result.Failed++
	}
	a.result.Details = append(a.result.Details, item)
}

// Abort records a batch-wide failure. Items already folded are kept.
func (a *Aggregator) Abort(err error) {
	if err != nil {
		a.result.Error = err.Error()
	}
}

// Result finalizes the batch status.
// An empty batch is a success unless it was aborted.
func (a *Aggregator) Result() *SyncBatchResult {
	r := a.result
	r.Details = append([]ItemResult(nil), a.result.Details...)
	if r.Details == nil {
		r.Details = []ItemResult{}
	}
	switch {
	case r.Failed == 0 && r.Error == "":
		r.Status = SyncStatusSuccess
	case r.Succeeded() == 0:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
	r.FinishedAt = a.now()
	return &r
}
