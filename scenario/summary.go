package scenario

import (
	"math"
	"time"

	"go-emtrack/fulfillment"
	"go-emtrack/types"
)

// ComputeSummary aggregates records in one pass. Blank quantities count as
// zero. Done records count toward completed only; the eta buckets cover
// pending records with a parseable eta.
func ComputeSummary(records []types.RequestRecord, now time.Time) types.Summary {
	var s types.Summary
	s.TotalRequests = len(records)
	for _, r := range records {
		s.TotalQuantity += r.Quantity.OrZero()
		if r.Done {
			s.Completed++
		}
		switch fulfillment.Classify(r, now) {
		case types.ETAOnTime:
			s.OnTime++
		case types.ETAApproaching:
			s.Approaching++
		case types.ETADue:
			s.Late++
		}
	}
	s.Pending = s.TotalRequests - s.Completed
	if s.TotalRequests > 0 {
		s.CompletionPct = int(math.Round(float64(s.Completed) / float64(s.TotalRequests) * 100))
	}
	return s
}
