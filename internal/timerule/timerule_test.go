package timerule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRules(t *testing.T) *Rules {
	t.Helper()
	r, err := New("UTC")
	require.NoError(t, err)
	return r
}

func TestNew_UnknownTimezone(t *testing.T) {
	_, err := New("Nowhere/Invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load app timezone")
}

func TestCanCreate(t *testing.T) {
	r := mustRules(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		startAt time.Time
		want    bool
	}{
		{"thirty minutes ahead", now.Add(30 * time.Minute), false},
		{"one second short of an hour", now.Add(time.Hour - time.Second), false},
		{"exactly one hour ahead", now.Add(time.Hour), true},
		{"65 minutes ahead", now.Add(65 * time.Minute), true},
		{"in the past", now.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.CanCreate(now, tt.startAt))
		})
	}
}

func TestCanDelete(t *testing.T) {
	r := mustRules(t)
	startAt := time.Date(2024, 1, 15, 11, 5, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"eleven minutes before", startAt.Add(-11 * time.Minute), true},
		{"exactly ten minutes before", startAt.Add(-10 * time.Minute), true},
		{"nine minutes before", startAt.Add(-9 * time.Minute), false},
		{"after start", startAt.Add(time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.CanDelete(tt.now, startAt))
		})
	}
}

func TestWithinDispatchWindow(t *testing.T) {
	r := mustRules(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	window := DefaultDispatchWindow

	tests := []struct {
		name    string
		startAt time.Time
		want    bool
	}{
		{"due exactly now", now, true},
		{"thirty seconds ago", now.Add(-30 * time.Second), true},
		{"exactly two minutes ago", now.Add(-2 * time.Minute), false},
		{"two minutes one second ago", now.Add(-2*time.Minute - time.Second), false},
		{"in the future", now.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.WithinDispatchWindow(now, tt.startAt, window))
		})
	}
}

func TestNextMinuteFloor(t *testing.T) {
	r := mustRules(t)

	in := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC), r.NextMinuteFloor(in))

	onBoundary := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, onBoundary, r.NextMinuteFloor(onBoundary))

	withNanos := time.Date(2024, 1, 15, 10, 30, 0, 1, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC), r.NextMinuteFloor(withNanos))
}

func TestMinuteKey(t *testing.T) {
	r := mustRules(t)
	in := time.Date(2024, 1, 15, 9, 5, 42, 0, time.UTC)
	assert.Equal(t, "2024-01-15-09-05", r.MinuteKey(in))
}

func TestMinuteKey_LocalizesToAppTimezone(t *testing.T) {
	r, err := New("Europe/Amsterdam")
	require.NoError(t, err)

	// 09:00 UTC in January is 10:00 in Amsterdam (CET).
	in := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-15-10-00", r.MinuteKey(in))
}

func TestCopyToDate(t *testing.T) {
	r := mustRules(t)

	orig := time.Date(2024, 1, 15, 9, 30, 15, 500, time.UTC)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	got := r.CopyToDate(orig, target)
	assert.Equal(t, time.Date(2024, 1, 16, 9, 30, 15, 500, time.UTC), got)
}

func TestDayBounds(t *testing.T) {
	r := mustRules(t)
	day := time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)

	start, end := r.DayBounds(day)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 59, 999999999, time.UTC), end)
}

func TestParseDay(t *testing.T) {
	r := mustRules(t)

	day, err := r.ParseDay("2024-01-16")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), day)

	_, err = r.ParseDay("16/01/2024")
	require.Error(t, err)
}

func TestParseStartAt(t *testing.T) {
	r := mustRules(t)

	rfc, err := r.ParseStartAt("2024-01-15T11:05:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 11, 5, 0, 0, time.UTC), rfc)

	legacy, err := r.ParseStartAt("2024-01-15 11:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 11, 5, 0, 0, time.UTC), legacy)

	_, err = r.ParseStartAt("next tuesday")
	require.Error(t, err)
}

// Scenario from the scheduling design review: create at 10:00Z.
func TestCreateAndDeleteScenario(t *testing.T) {
	r := mustRules(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.False(t, r.CanCreate(now, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
	assert.True(t, r.CanCreate(now, time.Date(2024, 1, 15, 11, 5, 0, 0, time.UTC)))

	startAt := time.Date(2024, 1, 15, 11, 5, 0, 0, time.UTC)
	assert.False(t, r.CanDelete(time.Date(2024, 1, 15, 10, 56, 0, 0, time.UTC), startAt))
	assert.True(t, r.CanDelete(time.Date(2024, 1, 15, 10, 54, 0, 0, time.UTC), startAt))
}
