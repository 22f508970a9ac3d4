package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func TestOfDay(t *testing.T) {
	r, err := OfDay("2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, midnight(2025, 2, 28), r.Start)
	assert.Equal(t, midnight(2025, 3, 1), r.End)
}

func TestOfWeekStartsOnMonday(t *testing.T) {
	r, err := OfWeek("2025-11-27")
	require.NoError(t, err)
	assert.Equal(t, midnight(2025, 11, 24), r.Start)
	assert.Equal(t, midnight(2025, 12, 1), r.End)

	for day := 1; day <= 31; day++ {
		anchor := midnight(2025, 12, day)
		r, err := OfWeek(anchor.Format(DayLayout))
		require.NoError(t, err)
		assert.Equal(t, time.Monday, r.Start.Weekday(), anchor)
		assert.True(t, IsMidnight(r.Start))
		assert.Equal(t, r.Start.AddDate(0, 0, 7), r.End)
		assert.True(t, r.Contains(anchor))
	}
}

func TestOfWeekOnMondayAnchor(t *testing.T) {
	r, err := OfWeek("2025-11-24")
	require.NoError(t, err)
	assert.Equal(t, midnight(2025, 11, 24), r.Start)
}

func TestOfMonth(t *testing.T) {
	tests := map[string][2]time.Time{
		"2025-11": {midnight(2025, 11, 1), midnight(2025, 12, 1)},
		"2025-12": {midnight(2025, 12, 1), midnight(2026, 1, 1)},
		"2024-02": {midnight(2024, 2, 1), midnight(2024, 3, 1)},
	}
	for anchor, want := range tests {
		r, err := OfMonth(anchor)
		require.NoError(t, err, anchor)
		assert.Equal(t, want[0], r.Start, anchor)
		assert.Equal(t, want[1], r.End, anchor)
	}
}

func TestCalculateRejectsMalformedDates(t *testing.T) {
	tests := []struct {
		kind   Kind
		anchor string
	}{
		{Day, ""},
		{Day, "2025-11"},
		{Day, "2025-1-05"},
		{Day, "2025-02-30"},
		{Day, "20251105xx"},
		{Week, "2025/11/05"},
		{Month, "2025-11-05"},
		{Month, "2025-13"},
		{Month, "abcd-ef"},
	}
	for _, tt := range tests {
		_, err := Calculate(tt.kind, tt.anchor)
		assert.ErrorIs(t, err, ErrInvalidDate, "%s %q", tt.kind, tt.anchor)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	for _, kind := range []Kind{Day, Week} {
		a, err := Calculate(kind, "2025-06-15")
		require.NoError(t, err)
		b, err := Calculate(kind, "2025-06-15")
		require.NoError(t, err)
		assert.True(t, a == b)
	}
	a, _ := Calculate(Month, "2025-06")
	b, _ := Calculate(Month, "2025-06")
	assert.True(t, a == b)
}

func TestDateRangeDays(t *testing.T) {
	r, err := OfWeek("2025-11-27")
	require.NoError(t, err)
	days := r.Days()
	require.Len(t, days, 7)
	assert.Equal(t, midnight(2025, 11, 24), days[0])
	assert.Equal(t, midnight(2025, 11, 30), days[6])
}
