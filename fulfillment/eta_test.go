package fulfillment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go-emtrack/types"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 14, h, m, 30, 0, time.Local)
}

func TestEstimateFromSource(t *testing.T) {
	tests := []struct {
		km    float64
		speed float64
		want  int
	}{
		{15, DefaultSpeedKmh, 30},
		{0, DefaultSpeedKmh, 0},
		{1, DefaultSpeedKmh, 2},
		{0.8, DefaultSpeedKmh, 2},
		{60, 60, 60},
		{10, 0, 20},
	}
	for _, tt := range tests {
		got := EstimateFromSource(types.SourceEntry{Name: "x", DistanceKm: tt.km}, tt.speed)
		assert.Equal(t, tt.want, got, "km=%v speed=%v", tt.km, tt.speed)
	}
}

func TestETAFrom_WrapsMidnight(t *testing.T) {
	assert.Equal(t, "10:45", ETAFrom(at(10, 15), 30))
	assert.Equal(t, "00:10", ETAFrom(at(23, 50), 20))
}

func TestParseHM(t *testing.T) {
	valid := map[string]int{"0:00": 0, "9:05": 545, "09:05": 545, "23:59": 1439, " 12:30 ": 750}
	for in, want := range valid {
		got, ok := ParseHM(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "12", "12:5", "123:00", "24:00", "12:60", "ab:cd", "12:30pm"} {
		_, ok := ParseHM(in)
		assert.False(t, ok, in)
	}
}

func TestClassifyETA(t *testing.T) {
	now := at(14, 20)
	tests := []struct {
		eta  string
		want types.ETAStatus
	}{
		{"14:20", types.ETADue},
		{"14:00", types.ETADue},
		{"14:21", types.ETAApproaching},
		{"14:22", types.ETAOnTime},
		{"18:00", types.ETAOnTime},
		{"", types.ETANone},
		{"soon", types.ETAUnknown},
		{"25:00", types.ETAUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.eta, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyETA(tt.eta, now))
		})
	}
}

func TestClassify_DoneRecordsAreCleared(t *testing.T) {
	now := at(8, 0)
	rec := types.RequestRecord{ID: "a", ETA: "07:00", Done: true}
	assert.Equal(t, types.ETANone, Classify(rec, now))

	rec.Done = false
	assert.Equal(t, types.ETADue, Classify(rec, now))
}

func TestClassifyAll(t *testing.T) {
	now := at(8, 0)
	got := ClassifyAll([]types.RequestRecord{
		{ID: "a", ETA: "08:00"},
		{ID: "b", ETA: "08:01"},
		{ID: "c", ETA: "09:00"},
		{ID: "d", ETA: "09:00", Done: true},
	}, now)

	assert.Equal(t, map[string]types.ETAStatus{
		"a": types.ETADue,
		"b": types.ETAApproaching,
		"c": types.ETAOnTime,
		"d": types.ETANone,
	}, got)
}
