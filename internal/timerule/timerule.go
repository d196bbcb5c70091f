// Package timerule holds the pure timing rules for the scheduling engine:
// the create/delete windows, the dispatch window and the helpers for
// minute-granularity bucketing and day copies. All comparisons happen in the
// application time zone; naive inputs are localized before comparison.
package timerule

import (
	"fmt"
	"time"
)

const (
	// MinCreateLead is the minimum lead time between "now" and a new
	// schedule's start, giving downstream validation a guaranteed head start.
	MinCreateLead = time.Hour

	// DeleteCutoff is how close to start_at a schedule may still be deleted.
	// Inside the cutoff the scanner may already have claimed it.
	DeleteCutoff = 10 * time.Minute

	// DefaultDispatchWindow is the trailing interval within which a due,
	// unclaimed schedule is still picked up by a scanner tick.
	DefaultDispatchWindow = 2 * time.Minute
)

// Rules evaluates the timing rules in a fixed application time zone.
type Rules struct {
	loc *time.Location
}

// New builds Rules for the given IANA time zone name.
func New(tzName string) (*Rules, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load app timezone %q: %w", tzName, err)
	}
	return &Rules{loc: loc}, nil
}

// NewInLocation builds Rules for an already-resolved location.
func NewInLocation(loc *time.Location) *Rules {
	return &Rules{loc: loc}
}

// Location returns the application time zone.
func (r *Rules) Location() *time.Location { return r.loc }

// localize interprets t in the application time zone.
func (r *Rules) localize(t time.Time) time.Time {
	return t.In(r.loc)
}

// CanCreate reports whether a schedule starting at startAt may be created at
// now. Rule: startAt >= now + 1 hour.
func (r *Rules) CanCreate(now, startAt time.Time) bool {
	return !r.localize(startAt).Before(r.localize(now).Add(MinCreateLead))
}

// CanDelete reports whether a schedule starting at startAt may still be
// deleted at now. Rule: now <= startAt - 10 minutes.
func (r *Rules) CanDelete(now, startAt time.Time) bool {
	return !r.localize(now).After(r.localize(startAt).Add(-DeleteCutoff))
}

// WithinDispatchWindow reports whether startAt falls inside the trailing
// dispatch window (now-window, now].
func (r *Rules) WithinDispatchWindow(now, startAt time.Time, window time.Duration) bool {
	now = r.localize(now)
	startAt = r.localize(startAt)
	return startAt.After(now.Add(-window)) && !startAt.After(now)
}

// NextMinuteFloor rounds t up to the next whole minute; an instant already on
// a minute boundary is returned unchanged.
func (r *Rules) NextMinuteFloor(t time.Time) time.Time {
	t = r.localize(t)
	floored := t.Truncate(time.Minute)
	if floored.Equal(t) {
		return floored
	}
	return floored.Add(time.Minute)
}

// MinuteKey formats t as YYYY-MM-DD-HH-MM, a minute-granularity bucket key.
func (r *Rules) MinuteKey(t time.Time) string {
	return r.localize(t).Format("2006-01-02-15-04")
}

// CopyToDate keeps t's clock time (hour through nanosecond) but substitutes
// the calendar date of target, interpreted in the application time zone.
func (r *Rules) CopyToDate(t, target time.Time) time.Time {
	t = r.localize(t)
	target = r.localize(target)
	return time.Date(target.Year(), target.Month(), target.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), r.loc)
}

// DayBounds returns the inclusive [00:00:00, 23:59:59.999999999] range of the
// calendar day containing date.
func (r *Rules) DayBounds(date time.Time) (time.Time, time.Time) {
	date = r.localize(date)
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	end := start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}

// ParseDay parses a YYYY-MM-DD calendar date in the application time zone.
func (r *Rules) ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseStartAt parses a schedule start time. RFC 3339 is preferred; the
// legacy "YYYY-MM-DD HH:MM" form is interpreted in the application time zone.
func (r *Rules) ParseStartAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return r.localize(t), nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_at %q: use RFC 3339 or YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}
