package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wordarena/arena-backend/models"
)

func newTestRanking(t *testing.T, competitions *fakeCompetitionRepo, participations *fakeParticipationRepo, rankings *fakeRankingRepo, users *fakeUserRepo, now time.Time) *rankingService {
	t.Helper()
	svc := NewRankingService(
		competitions, participations, rankings, users,
		models.DefaultWeeklyPrizeTable, brtLocation(), nil, discardLogger(),
	).(*rankingService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAggregateRankingOrdersAndPaysPrizes(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, loc)
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, loc)

	competitions := newFakeCompetitionRepo()
	weekly := competitions.add(models.Competition{
		Title:   "Weekly 35",
		Kind:    models.KindWeekly,
		Status:  models.StatusActive,
		StartAt: weekStart.UTC(),
		EndAt:   weekStart.AddDate(0, 0, 7).Add(-time.Second).UTC(),
	})

	participations := newFakeParticipationRepo()
	joined := weekStart.Add(time.Hour)
	participations.add(weekly.ID, 1, 300, joined)
	participations.add(weekly.ID, 2, 500, joined.Add(time.Minute))
	participations.add(weekly.ID, 3, 150, joined.Add(2*time.Minute))

	rankings := newFakeRankingRepo()
	users := newFakeUserRepo()
	users.add(1, "alice", 300)
	users.add(2, "bob", 500)
	users.add(3, "carol", 150)

	svc := newTestRanking(t, competitions, participations, rankings, users, now)

	result, err := svc.AggregateRanking(context.Background(), "2026-W35")
	if err != nil {
		t.Fatalf("AggregateRanking: %v", err)
	}
	if result.Competitions != 1 {
		t.Errorf("competitions = %d, want 1", result.Competitions)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(result.Entries))
	}

	want := []struct {
		userID   int
		score    int
		position int
		prize    float64
	}{
		{2, 500, 1, 100},
		{1, 300, 2, 50},
		{3, 150, 3, 25},
	}
	for i, w := range want {
		e := result.Entries[i]
		if e.UserID != w.userID || e.Score != w.score || e.Position != w.position || e.PrizeAmount != w.prize {
			t.Errorf("entry[%d] = user %d score %d pos %d prize %.0f, want user %d score %d pos %d prize %.0f",
				i, e.UserID, e.Score, e.Position, e.PrizeAmount, w.userID, w.score, w.position, w.prize)
		}
	}

	// Positions written back to the live rows.
	p := participations.find(weekly.ID, 2)
	if p.Position == nil || *p.Position != 1 {
		t.Errorf("participation position for user 2 = %v, want 1", p.Position)
	}
	if u := users.users[2]; u.BestPosition == nil || *u.BestPosition != 1 {
		t.Errorf("best position for user 2 = %v, want 1", u.BestPosition)
	}
}

func TestAggregateRankingTieBreaks(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, loc)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, loc)

	competitions := newFakeCompetitionRepo()
	daily := competitions.add(models.Competition{
		Title:   "Daily",
		Kind:    models.KindDaily,
		Status:  models.StatusActive,
		StartAt: day.Add(8 * time.Hour).UTC(),
		EndAt:   day.AddDate(0, 0, 1).Add(-time.Second).UTC(),
	})

	participations := newFakeParticipationRepo()
	base := day.Add(9 * time.Hour)
	// Same score: earlier join wins; same join instant: lower id wins.
	participations.add(daily.ID, 7, 200, base.Add(time.Minute))
	participations.add(daily.ID, 3, 200, base)
	participations.add(daily.ID, 9, 200, base)

	rankings := newFakeRankingRepo()
	svc := newTestRanking(t, competitions, participations, rankings, newFakeUserRepo(), now)

	result, err := svc.AggregateRanking(context.Background(), "2026-08-26")
	if err != nil {
		t.Fatalf("AggregateRanking: %v", err)
	}

	wantOrder := []int{3, 9, 7}
	for i, userID := range wantOrder {
		if result.Entries[i].UserID != userID {
			t.Errorf("position %d = user %d, want user %d", i+1, result.Entries[i].UserID, userID)
		}
		if result.Entries[i].Position != i+1 {
			t.Errorf("entry %d position = %d, want %d", i, result.Entries[i].Position, i+1)
		}
		// Daily competitions never pay out.
		if result.Entries[i].PrizeAmount != 0 {
			t.Errorf("entry %d prize = %.2f, want 0", i, result.Entries[i].PrizeAmount)
		}
	}
}

func TestAggregateRankingConvergesOnRerun(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, loc)
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, loc)

	competitions := newFakeCompetitionRepo()
	weekly := competitions.add(models.Competition{
		Title:   "Weekly 35",
		Kind:    models.KindWeekly,
		Status:  models.StatusActive,
		StartAt: weekStart.UTC(),
		EndAt:   weekStart.AddDate(0, 0, 7).Add(-time.Second).UTC(),
	})

	participations := newFakeParticipationRepo()
	participations.add(weekly.ID, 1, 120, weekStart.Add(time.Hour))
	participations.add(weekly.ID, 2, 80, weekStart.Add(2*time.Hour))

	rankings := newFakeRankingRepo()
	users := newFakeUserRepo()
	users.add(1, "alice", 120)
	users.add(2, "bob", 80)
	svc := newTestRanking(t, competitions, participations, rankings, users, now)

	first, err := svc.AggregateRanking(context.Background(), "2026-W35")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.AggregateRanking(context.Background(), "2026-W35")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry counts differ: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		if a.UserID != b.UserID || a.Score != b.Score || a.Position != b.Position || a.PrizeAmount != b.PrizeAmount {
			t.Errorf("entry %d diverged between runs: %+v vs %+v", i, a, b)
		}
	}

	// One row per (period, user), not one per run.
	stored, err := svc.GetRanking(context.Background(), "2026-W35")
	if err != nil {
		t.Fatalf("GetRanking: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored entries = %d, want 2", len(stored))
	}
}

func TestAggregateRankingSumsAcrossCompetitions(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, loc)
	weekStart := time.Date(2026, 8, 24, 0, 0, 0, 0, loc)

	competitions := newFakeCompetitionRepo()
	first := competitions.add(models.Competition{
		Title:   "Weekly A",
		Kind:    models.KindWeekly,
		Status:  models.StatusCompleted,
		StartAt: weekStart.UTC(),
		EndAt:   weekStart.AddDate(0, 0, 3).UTC(),
	})
	second := competitions.add(models.Competition{
		Title:   "Weekly B",
		Kind:    models.KindWeekly,
		Status:  models.StatusActive,
		StartAt: weekStart.AddDate(0, 0, 3).Add(time.Hour).UTC(),
		EndAt:   weekStart.AddDate(0, 0, 7).Add(-time.Second).UTC(),
	})

	participations := newFakeParticipationRepo()
	participations.add(first.ID, 1, 100, weekStart.Add(time.Hour))
	participations.add(second.ID, 1, 50, weekStart.AddDate(0, 0, 4))
	participations.add(second.ID, 2, 120, weekStart.AddDate(0, 0, 4))

	rankings := newFakeRankingRepo()
	users := newFakeUserRepo()
	users.add(1, "alice", 150)
	users.add(2, "bob", 120)
	svc := newTestRanking(t, competitions, participations, rankings, users, now)

	result, err := svc.AggregateRanking(context.Background(), "2026-W35")
	if err != nil {
		t.Fatalf("AggregateRanking: %v", err)
	}
	if result.Competitions != 2 {
		t.Errorf("competitions = %d, want 2", result.Competitions)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].UserID != 1 || result.Entries[0].Score != 150 {
		t.Errorf("top entry = user %d score %d, want user 1 score 150", result.Entries[0].UserID, result.Entries[0].Score)
	}
}

func TestAggregateRankingRejectsBadPeriodKey(t *testing.T) {
	svc := newTestRanking(t, newFakeCompetitionRepo(), newFakeParticipationRepo(), newFakeRankingRepo(), newFakeUserRepo(), time.Now())

	for _, key := range []string{"", "W35", "2026-W00", "2026-13-40", "garbage"} {
		if _, err := svc.AggregateRanking(context.Background(), key); !errors.Is(err, ErrInvalidPeriodKey) {
			t.Errorf("AggregateRanking(%q) error = %v, want ErrInvalidPeriodKey", key, err)
		}
	}
}
