package fulfillment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-emtrack/types"
)

// DefaultSpeedKmh is the assumed travel speed used to turn a source's distance
// into an estimate.
const DefaultSpeedKmh = 30.0

const hmLayout = "15:04"

var hmPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// EstimateFromSource converts a source distance into whole minutes.
func EstimateFromSource(entry types.SourceEntry, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(math.Round(entry.DistanceKm / speedKmh * 60))
}

func FormatHM(t time.Time) string {
	return t.Format(hmLayout)
}

// ETAFrom returns the wall-clock HH:MM that is minutes after now. There is no
// date component, so the result wraps past midnight.
func ETAFrom(now time.Time, minutes int) string {
	return FormatHM(now.Add(time.Duration(minutes) * time.Minute))
}

// ParseHM reads "H:MM" or "HH:MM" and returns minutes since midnight.
func ParseHM(s string) (int, bool) {
	m := hmPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return 0, false
	}
	return h*60 + min, true
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ClassifyETA compares an HH:MM eta against now at minute granularity, both
// taken as times of the current day. A blank eta is not classified and a
// malformed one is unknown.
func ClassifyETA(eta string, now time.Time) types.ETAStatus {
	if strings.TrimSpace(eta) == "" {
		return types.ETANone
	}
	etaMin, ok := ParseHM(eta)
	if !ok {
		return types.ETAUnknown
	}
	n := minuteOfDay(now)
	switch {
	case n >= etaMin:
		return types.ETADue
	case n == etaMin-1:
		return types.ETAApproaching
	default:
		return types.ETAOnTime
	}
}

// Classify excludes done records, whose status is always cleared.
func Classify(rec types.RequestRecord, now time.Time) types.ETAStatus {
	if rec.Done {
		return types.ETANone
	}
	return ClassifyETA(rec.ETA, now)
}

func ClassifyAll(records []types.RequestRecord, now time.Time) map[string]types.ETAStatus {
	out := make(map[string]types.ETAStatus, len(records))
	for _, r := range records {
		out[r.ID] = Classify(r, now)
	}
	return out
}
