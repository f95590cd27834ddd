package models

import "time"

// SessionStatus matches the session_status ENUM in the database.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// GameSession is one play-through of a word-search board. A completed
// session with a score but no competition linkage is "orphaned": scored but
// not attributable to any ranking. The integrity auditor reports those.
type GameSession struct {
	ID            int           `json:"id" db:"id"`
	UserID        int           `json:"user_id" db:"user_id"`
	CompetitionID *int          `json:"competition_id,omitempty" db:"competition_id"`
	Score         *int          `json:"score,omitempty" db:"score"`
	Status        SessionStatus `json:"status" db:"status"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
