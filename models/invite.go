package models

import "time"

// Invite is a referral invitation. Redeeming one links the new player to the
// inviter; it never mutates any score.
type Invite struct {
	ID               int        `json:"id" db:"id"`
	InviterUserID    int        `json:"inviter_user_id" db:"inviter_user_id"`
	Code             string     `json:"code" db:"code"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	RedeemedByUserID *int       `json:"redeemed_by_user_id,omitempty" db:"redeemed_by_user_id"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty" db:"redeemed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// ReferralStats summarizes one player's referral activity.
type ReferralStats struct {
	UserID        int `json:"user_id"`
	InvitesSent   int `json:"invites_sent"`
	InvitesJoined int `json:"invites_joined"`
}
