package models

import "time"

// SnapshotStanding is one frozen row of a finalized competition's standings.
type SnapshotStanding struct {
	UserID   int     `json:"user_id"`
	Score    int     `json:"score"`
	Position int     `json:"position"`
	Prize    float64 `json:"prize"`
}

// FinalizationSnapshot is the immutable record of a competition's final
// standings, created exactly once at finalization and never mutated. It is
// the audit trail of what happened, independent of later corrections to the
// live tables.
type FinalizationSnapshot struct {
	ID                int                `json:"id" db:"id"`
	CompetitionID     int                `json:"competition_id" db:"competition_id"`
	Standings         []SnapshotStanding `json:"standings" db:"standings"` // stored as JSONB
	TotalParticipants int                `json:"total_participants" db:"total_participants"`
	TotalPrizePool    float64            `json:"total_prize_pool" db:"total_prize_pool"`
	ArchiveURL        *string            `json:"archive_url,omitempty" db:"archive_url"`
	FinalizedAt       time.Time          `json:"finalized_at" db:"finalized_at"`
}
