package reconciliation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
)

var (
	ErrMissingID     = errors.New("missing transaction id")
	ErrUnknownStatus = errors.New("unrecognized status")
)

// DataError describes one snapshot that was dropped from a batch.
type DataError struct {
	Index         int
	TransactionID string
	Status        domain.Status
	Err           error
}

func (e *DataError) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("snapshot %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("snapshot %d (%s): %v %q", e.Index, e.TransactionID, e.Err, e.Status)
}

func (e *DataError) Unwrap() error { return e.Err }

// Event is a newly observed terminal transition.
type Event struct {
	TransactionID string
	Status        domain.Status
	Amount        decimal.Decimal
	ReviewedBy    string
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Events  []Event
	Seen    SeenSet
	Skipped []*DataError
}

// Reconcile diffs a fetched snapshot list against the ids already notified.
//
// Snapshots are evaluated in server order. A snapshot yields an event when its
// status is terminal, an analyst has reviewed it and its id is not yet in the
// seen-set; the id is then added to the returned set. Everything else passes
// through silently, except malformed entries (no id, unknown status), which
// are reported in Skipped without affecting the rest of the batch.
//
// The input set is never modified. Passing the returned Seen back in with the
// same snapshots produces no events.
func Reconcile(snapshots []domain.TransactionSnapshot, seen SeenSet) Result {
	res := Result{Seen: seen}
	copied := false

	for i, snap := range snapshots {
		if snap.ID == "" {
			res.Skipped = append(res.Skipped, &DataError{Index: i, Status: snap.Status, Err: ErrMissingID})
			continue
		}
		if !snap.Status.Valid() {
			res.Skipped = append(res.Skipped, &DataError{
				Index:         i,
				TransactionID: snap.ID,
				Status:        snap.Status,
				Err:           ErrUnknownStatus,
			})
			continue
		}
		if !snap.Status.Terminal() || !snap.Reviewed() || res.Seen.Has(snap.ID) {
			continue
		}

		if !copied {
			res.Seen = seen.clone(len(snapshots) - i)
			copied = true
		}
		res.Seen.ids[snap.ID] = struct{}{}
		res.Events = append(res.Events, Event{
			TransactionID: snap.ID,
			Status:        snap.Status,
			Amount:        snap.Amount,
			ReviewedBy:    snap.ReviewedBy,
		})
	}

	return res
}
