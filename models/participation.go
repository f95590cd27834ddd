package models

import "time"

// Participation is one player's record inside one competition; unique on
// (competition_id, user_id). Score accumulates from completed game sessions
// and Position is written only by the ranking aggregator.
type Participation struct {
	ID            int       `json:"id" db:"id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	UserID        int       `json:"user_id" db:"user_id"`
	Score         int       `json:"score" db:"score"`
	Position      *int      `json:"position,omitempty" db:"position"`
	JoinedAt      time.Time `json:"joined_at" db:"joined_at"`

	User *User `json:"user,omitempty" db:"-"`
}
