package clock

import "time"

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock implementation backed by time.Now.
type TimeClocker struct {
	loc *time.Location
}

// New returns a TimeClocker that reads the current system time in loc.
// A nil loc means time.Local.
func New(loc *time.Location) *TimeClocker {
	if loc == nil {
		loc = time.Local
	}
	return &TimeClocker{loc: loc}
}

// Now returns the current system time in the clock location.
func (c *TimeClocker) Now() time.Time {
	return time.Now().In(c.loc)
}

// StartOfDay truncates t to midnight of its own calendar day, keeping t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
