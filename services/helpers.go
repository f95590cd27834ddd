package services

import (
	"fmt"
	"time"

	"github.com/wordarena/arena-backend/models"
)

func validateCompetitionDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrCompetitionDatesRequired
	}
	// start == end is a legal zero-duration competition.
	if end.Before(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrCompetitionInvalidDateRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func isValidKind(kind models.CompetitionKind) bool {
	return kind == models.KindDaily || kind == models.KindWeekly
}

// isValidStatusTransition encodes the monotonic lifecycle: scheduled may
// advance to active (or straight to completed when a sweep catches up late),
// active only ends. Terminal states never transition.
func isValidStatusTransition(current, next models.CompetitionStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.CompetitionStatus][]models.CompetitionStatus{
		models.StatusScheduled: {models.StatusActive, models.StatusCompleted, models.StatusCancelled},
		models.StatusActive:    {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted: {},
		models.StatusCancelled: {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}
