package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go-emtrack/types"
)

func TestComputeSummary_Totals(t *testing.T) {
	records := []types.RequestRecord{
		{ID: "a", Quantity: types.Int(5)},
		{ID: "b", Quantity: types.Int(0), Done: true},
		{ID: "c", Quantity: types.Int(3)},
	}
	got := ComputeSummary(records, time.Now())

	assert.Equal(t, 3, got.TotalRequests)
	assert.Equal(t, 8, got.TotalQuantity)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 2, got.Pending)
	assert.Equal(t, 33, got.CompletionPct)
}

func TestComputeSummary_ETABuckets(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	records := []types.RequestRecord{
		{ID: "late", ETA: "09:00"},
		{ID: "due", ETA: "09:30"},
		{ID: "soon", ETA: "09:31"},
		{ID: "later", ETA: "11:00"},
		{ID: "blank"},
		{ID: "garbled", ETA: "9h"},
		{ID: "done", ETA: "08:00", Done: true},
	}
	got := ComputeSummary(records, now)

	assert.Equal(t, types.Summary{
		TotalRequests: 7,
		Completed:     1,
		Pending:       6,
		OnTime:        1,
		Approaching:   1,
		Late:          2,
		CompletionPct: 14,
	}, got)
}

func TestComputeSummary_Empty(t *testing.T) {
	assert.Equal(t, types.Summary{}, ComputeSummary(nil, time.Now()))
}
