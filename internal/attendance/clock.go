package attendance

import (
	"time"
)

// Clock classifies check-ins as present or late relative to a session's
// scheduled start, using the deployment's fixed civil time zone. It is a
// pure function; looking up the scheduled start is the orchestrator's job.
type Clock struct {
	// Location is the fixed civil zone naive timestamps belong to.
	Location *time.Location
	// LateThreshold is the grace period after the scheduled start.
	LateThreshold time.Duration
}

// NewClock creates a clock for the given civil zone and grace period.
func NewClock(loc *time.Location, lateThreshold time.Duration) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{Location: loc, LateThreshold: lateThreshold}
}

// Classify returns late when now is more than LateThreshold past the
// scheduled start, present otherwise. The boundary is inclusive: arriving
// at exactly the threshold still counts as present.
//
// scheduledStart is a civil timestamp: its wall-clock fields are
// interpreted in the clock's zone regardless of the location attached by
// the database driver. A nil scheduledStart classifies as present;
// timeliness is a soft signal, not a precondition for attendance.
func (c *Clock) Classify(scheduledStart *time.Time, now time.Time) Status {
	if scheduledStart == nil {
		return StatusPresent
	}

	start := rebase(*scheduledStart, c.Location)
	elapsed := now.In(c.Location).Sub(start)

	if elapsed > c.LateThreshold {
		return StatusLate
	}
	return StatusPresent
}

// rebase reinterprets t's wall-clock reading in the given zone.
func rebase(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
