package services

import (
	"context"
	"testing"
	"time"

	"github.com/wordarena/arena-backend/models"
)

type auditFixture struct {
	competitions *fakeCompetitionRepo
	rankings     *fakeRankingRepo
	sessions     *fakeSessionRepo
	users        *fakeUserRepo
	logs         *fakeAutomationLogRepo
	svc          *auditService
}

func newAuditFixture(t *testing.T, now time.Time) *auditFixture {
	t.Helper()
	f := &auditFixture{
		competitions: newFakeCompetitionRepo(),
		rankings:     newFakeRankingRepo(),
		sessions:     newFakeSessionRepo(),
		users:        newFakeUserRepo(),
		logs:         newFakeAutomationLogRepo(),
	}
	f.svc = NewAuditService(
		f.competitions, f.rankings, f.sessions, f.users, f.logs,
		brtLocation(), discardLogger(),
	).(*auditService)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestRunAuditHealthy(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if !report.Healthy {
		t.Errorf("report unhealthy on empty data: %+v", report)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want none", report.Recommendations)
	}
}

func TestRunAuditDetectsDuplicates(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)
	f.rankings.duplicates = []models.DuplicateRanking{
		{PeriodKey: "2026-W35", UserID: 7, Count: 2},
	}

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if report.Healthy {
		t.Error("report healthy despite duplicate rankings")
	}
	if len(report.DuplicateRankings) != 1 {
		t.Errorf("duplicates = %d, want 1", len(report.DuplicateRankings))
	}
	if len(report.Recommendations) == 0 {
		t.Error("no recommendation for duplicate rankings")
	}
}

func TestRunAuditDetectsOrphanedSessions(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)

	orphan := &models.GameSession{UserID: 1, Status: models.SessionInProgress}
	if err := f.sessions.Create(context.Background(), orphan); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := f.sessions.Complete(context.Background(), nil, orphan.ID, 40, now); err != nil {
		t.Fatalf("complete session: %v", err)
	}

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if len(report.OrphanedSessions) != 1 {
		t.Errorf("orphaned sessions = %d, want 1", len(report.OrphanedSessions))
	}
	if report.Healthy {
		t.Error("report healthy despite orphaned session")
	}
}

func TestRunAuditDetectsUnrankedUsers(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)

	f.users.add(1, "ranked", 120)
	f.users.add(2, "unranked", 80)
	f.users.add(3, "idle", 0)

	// Week of Aug 24 is the current weekly period at this instant.
	if err := f.rankings.UpsertBatch(context.Background(), nil, []models.RankingEntry{
		{PeriodKey: "2026-W35", UserID: 1, Score: 120, Position: 1},
	}); err != nil {
		t.Fatalf("seed ranking: %v", err)
	}

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if len(report.UnrankedUserIDs) != 1 || report.UnrankedUserIDs[0] != 2 {
		t.Errorf("unranked = %v, want [2]", report.UnrankedUserIDs)
	}
}

func TestRunAuditDetectsStaleStatuses(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)

	stale := f.competitions.add(models.Competition{
		Title:   "Stale",
		Kind:    models.KindDaily,
		Status:  models.StatusScheduled,
		StartAt: now.Add(-2 * time.Hour).UTC(),
		EndAt:   now.Add(6 * time.Hour).UTC(),
	})
	f.competitions.add(models.Competition{
		Title:   "Fine",
		Kind:    models.KindWeekly,
		Status:  models.StatusActive,
		StartAt: now.Add(-time.Hour).UTC(),
		EndAt:   now.Add(48 * time.Hour).UTC(),
	})

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if len(report.StaleStatuses) != 1 {
		t.Fatalf("stale statuses = %d, want 1", len(report.StaleStatuses))
	}
	got := report.StaleStatuses[0]
	if got.CompetitionID != stale.ID || got.StoredStatus != models.StatusScheduled || got.CalculatedStatus != models.StatusActive {
		t.Errorf("stale finding = %+v, want competition %d scheduled->active", got, stale.ID)
	}

	// The audit only reports; the stored row stays untouched.
	if status := f.competitions.competitions[stale.ID].Status; status != models.StatusScheduled {
		t.Errorf("audit mutated stored status to %s", status)
	}
}

func TestRunAuditCountsPendingAutomations(t *testing.T) {
	loc := brtLocation()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	f := newAuditFixture(t, now)

	entry := &models.AutomationLogEntry{
		Type:          models.AutomationTypeReconcile,
		Status:        models.AutomationPending,
		ScheduledTime: now,
	}
	if err := f.logs.Create(context.Background(), entry); err != nil {
		t.Fatalf("create log entry: %v", err)
	}

	report, err := f.svc.RunAudit(context.Background())
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if report.PendingAutomations != 1 {
		t.Errorf("pending automations = %d, want 1", report.PendingAutomations)
	}
	if report.Healthy {
		t.Error("report healthy despite pending automation run")
	}
}
