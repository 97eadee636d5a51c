package domain

import "time"

// Status is the display state of a timer at a given instant.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
)

// ComputeStatus derives the display status of t at now.
//
// FIXED timers are SCHEDULED before StartAt, EXPIRED after EndAt and ACTIVE
// otherwise; both bounds are inclusive and a nil bound places no constraint
// on that side. EVERGREEN timers have no absolute schedule and are always
// ACTIVE. The function is total and has no side effects.
func ComputeStatus(t Timer, now time.Time) Status {
	if t.Type != TimerTypeFixed {
		return StatusActive
	}
	if t.StartAt != nil && now.Before(*t.StartAt) {
		return StatusScheduled
	}
	if t.EndAt != nil && now.After(*t.EndAt) {
		return StatusExpired
	}
	return StatusActive
}

// IsActiveAt reports whether t may be shown on the storefront at now.
func (t Timer) IsActiveAt(now time.Time) bool {
	return ComputeStatus(t, now) == StatusActive
}
