package models

import "time"

// User is a player profile. TotalScore and BestPosition are the live weekly
// counters that get zeroed by finalization; they are never reset anywhere
// else.
type User struct {
	ID              int        `json:"id" db:"id"`
	Nickname        string     `json:"nickname" db:"nickname"`
	Email           string     `json:"email" db:"email"`
	TotalScore      int        `json:"total_score" db:"total_score"`
	BestPosition    *int       `json:"best_position,omitempty" db:"best_position"`
	ReferralCode    *string    `json:"referral_code,omitempty" db:"referral_code"`
	InvitedByUserID *int       `json:"invited_by_user_id,omitempty" db:"invited_by_user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastPlayedAt    *time.Time `json:"last_played_at,omitempty" db:"last_played_at"`
}

type UserFilter struct {
	Nickname *string
	Page     int
	Limit    int
}
