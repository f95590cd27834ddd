package models

import "time"

// RankingEntry is one row of a period ranking, unique on
// (period_key, user_id). The uniqueness constraint is the upsert conflict
// target that keeps concurrent aggregation runs from duplicating rows.
type RankingEntry struct {
	ID          int       `json:"id" db:"id"`
	PeriodKey   string    `json:"period_key" db:"period_key"`
	UserID      int       `json:"user_id" db:"user_id"`
	Score       int       `json:"score" db:"score"`
	Position    int       `json:"position" db:"position"` // 1-based, strict, no gaps
	PrizeAmount float64   `json:"prize_amount" db:"prize_amount"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DuplicateRanking describes a (period, user) pair that appears more than
// once in ranking_entries. Reported by the integrity auditor.
type DuplicateRanking struct {
	PeriodKey string `json:"period_key" db:"period_key"`
	UserID    int    `json:"user_id" db:"user_id"`
	Count     int    `json:"count" db:"count"`
}
