// Package schedule holds the pure time arithmetic of the competition
// lifecycle: status calculation and period key handling. No I/O.
package schedule

import (
	"time"

	"github.com/wordarena/arena-backend/models"
)

// CalculateStatus derives a competition's lifecycle status from its start
// and end instants and the current time. All three instants are converted
// into the fixed civil timezone before comparison; stored timestamps are UTC
// and must never be compared against wall-clock boundaries directly.
//
// Boundary semantics are inclusive on both ends:
//
//	now <  start         -> scheduled
//	start <= now <= end  -> active
//	now >  end           -> completed
//
// A zero-duration competition (start == end) is active for exactly that one
// instant. The three regions partition the timeline with no gaps and no
// overlap.
func CalculateStatus(startAt, endAt, now time.Time, loc *time.Location) models.CompetitionStatus {
	start := startAt.In(loc)
	end := endAt.In(loc)
	current := now.In(loc)

	switch {
	case current.Before(start):
		return models.StatusScheduled
	case current.After(end):
		return models.StatusCompleted
	default:
		return models.StatusActive
	}
}

// EndOfCivilDay pins t to the last whole second of its civil day in loc.
// Daily competitions always end on the same civil day they start.
func EndOfCivilDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc)
}

// StartOfCivilDay truncates t to midnight of its civil day in loc.
func StartOfCivilDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
