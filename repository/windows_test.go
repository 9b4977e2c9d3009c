package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatWindows(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	// 2026-10-19 09:30 CST = 01:30 UTC
	w := newStatWindows(time.Date(2026, 10, 19, 9, 30, 0, 0, loc))

	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.UTC, w.Now.Location())
	assert.Equal(t, day(2026, 10, 1), w.MonthStart)
	assert.Equal(t, day(2026, 11, 1), w.NextMonthStart)
	assert.Equal(t, day(2026, 10, 1), w.QuarterStart)
	assert.Equal(t, day(2026, 7, 1), w.LastQuarterStart)
	assert.Equal(t, day(2026, 5, 1), w.ChartStart)
	assert.Equal(t, w.Now.Add(7*24*time.Hour), w.AtRiskUntil)
	assert.Equal(t, w.Now.Add(-30*24*time.Hour), w.StalledBefore)
}

func TestNewStatWindowsQuarterBoundaries(t *testing.T) {
	cases := []struct {
		month        time.Month
		quarterStart time.Month
		lastYear     bool
		lastQuarter  time.Month
	}{
		{time.January, time.January, true, time.October},
		{time.March, time.January, true, time.October},
		{time.April, time.April, false, time.January},
		{time.August, time.July, false, time.April},
		{time.December, time.October, false, time.July},
	}
	for _, tc := range cases {
		t.Run(tc.month.String(), func(t *testing.T) {
			w := newStatWindows(time.Date(2026, tc.month, 15, 12, 0, 0, 0, time.UTC))
			assert.Equal(t, tc.quarterStart, w.QuarterStart.Month())
			assert.Equal(t, tc.lastQuarter, w.LastQuarterStart.Month())
			wantYear := 2026
			if tc.lastYear {
				wantYear = 2025
			}
			assert.Equal(t, wantYear, w.LastQuarterStart.Year())
		})
	}
}

func TestOpenStatusStrings(t *testing.T) {
	assert.Equal(t, []string{"DRAFT", "SUBMITTED", "IN_REVIEW"}, openStatusStrings())
}
