package fulfillment

import (
	"time"

	"go-emtrack/types"
)

type Transition string

const (
	NoTransition Transition = ""
	Completed    Transition = "completed"
	Reopened     Transition = "reopened"
)

// NewRequest returns a blank pending record.
func NewRequest(id string, now time.Time) types.RequestRecord {
	return types.RequestRecord{
		ID:        id,
		CreatedAt: now,
		Partials:  []types.PartialDelivery{},
	}
}

// SetDone moves a record to the requested state. Entering done stamps doneAt
// only if it is unset; leaving done clears it. Setting the current state is a
// no-op.
func SetDone(rec types.RequestRecord, done bool, now time.Time) (types.RequestRecord, Transition) {
	if rec.Done == done {
		return rec, NoTransition
	}
	rec.Done = done
	if done {
		if rec.DoneAt == "" {
			rec.DoneAt = FormatHM(now)
		}
		return rec, Completed
	}
	rec.DoneAt = ""
	return rec, Reopened
}

// Satisfied reports whether delivered partials cover a positive quantity.
func Satisfied(rec types.RequestRecord) bool {
	q := rec.Quantity.OrZero()
	return q > 0 && rec.PartialTotal() >= q
}

// EvaluateAutoCompletion runs after a partial or quantity mutation. It
// completes a pending record whose partials now cover its quantity, and
// reopens a done record whose coverage was lost by the mutation. Records done
// by explicit toggle without partial coverage are left alone.
func EvaluateAutoCompletion(before, after types.RequestRecord, now time.Time) (types.RequestRecord, Transition) {
	was, is := Satisfied(before), Satisfied(after)
	switch {
	case is && !after.Done:
		return SetDone(after, true, now)
	case was && !is && after.Done:
		return SetDone(after, false, now)
	}
	return after, NoTransition
}
