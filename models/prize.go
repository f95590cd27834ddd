package models

// PrizeTable maps a 1-based ranking position to a prize amount. Positions
// beyond the table pay nothing.
type PrizeTable map[int]float64

// DefaultWeeklyPrizeTable is the standard weekly payout split.
var DefaultWeeklyPrizeTable = PrizeTable{
	1: 100.0,
	2: 50.0,
	3: 25.0,
}

// AmountFor returns the prize for a position, 0 when unranked in the table.
func (t PrizeTable) AmountFor(position int) float64 {
	if t == nil {
		return 0
	}
	return t[position]
}
