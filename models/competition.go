package models

import "time"

// CompetitionStatus matches the competition_status ENUM in the database.
type CompetitionStatus string

const (
	StatusScheduled CompetitionStatus = "scheduled"
	StatusActive    CompetitionStatus = "active"
	StatusCompleted CompetitionStatus = "completed"
	StatusCancelled CompetitionStatus = "cancelled"
)

// IsTerminal reports whether the status is never re-examined by the
// reconciliation sweep.
func (s CompetitionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CompetitionKind matches the competition_kind ENUM in the database.
type CompetitionKind string

const (
	KindDaily  CompetitionKind = "daily"
	KindWeekly CompetitionKind = "weekly"
)

// Competition is a daily or weekly word-search competition. StartAt and
// EndAt are instants persisted in UTC; all lifecycle comparisons convert
// them into the configured civil timezone first.
type Competition struct {
	ID              int               `json:"id" db:"id"`
	Title           string            `json:"title" db:"title"`
	Theme           *string           `json:"theme,omitempty" db:"theme"`
	Kind            CompetitionKind   `json:"kind" db:"kind"`
	Status          CompetitionStatus `json:"status" db:"status"`
	StartAt         time.Time         `json:"start_at" db:"start_at"`
	EndAt           time.Time         `json:"end_at" db:"end_at"`
	MaxParticipants int               `json:"max_participants" db:"max_participants"` // 0 = unlimited
	PrizePool       float64           `json:"prize_pool" db:"prize_pool"`             // always 0 for daily
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`

	Participants []Participation `json:"participants,omitempty" db:"-"`
}
