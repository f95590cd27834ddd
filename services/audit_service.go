package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
)

// StaleStatus describes a competition whose stored status disagrees with
// the one derived from its time window.
type StaleStatus struct {
	CompetitionID    int                      `json:"competition_id"`
	StoredStatus     models.CompetitionStatus `json:"stored_status"`
	CalculatedStatus models.CompetitionStatus `json:"calculated_status"`
}

// AuditReport is the read-only output of one integrity audit. The auditor
// never mutates anything; Recommendations name the operation an operator
// should run to repair each finding.
type AuditReport struct {
	CheckedAt          time.Time                 `json:"checked_at"`
	DuplicateRankings  []models.DuplicateRanking `json:"duplicate_rankings"`
	OrphanedSessions   []models.GameSession      `json:"orphaned_sessions"`
	UnrankedUserIDs    []int                     `json:"unranked_user_ids"`
	StaleStatuses      []StaleStatus             `json:"stale_statuses"`
	PendingAutomations int                       `json:"pending_automations"`
	Healthy            bool                      `json:"healthy"`
	Recommendations    []string                  `json:"recommendations"`
}

type AuditService interface {
	// RunAudit executes every consistency check and returns the combined
	// report. Checks run concurrently; the first repository error aborts
	// the whole audit.
	RunAudit(ctx context.Context) (*AuditReport, error)
}

type auditService struct {
	competitionRepo repositories.CompetitionRepository
	rankingRepo     repositories.RankingRepository
	sessionRepo     repositories.SessionRepository
	userRepo        repositories.UserRepository
	automationRepo  repositories.AutomationLogRepository
	loc             *time.Location
	logger          *slog.Logger
	now             func() time.Time
}

func NewAuditService(
	competitionRepo repositories.CompetitionRepository,
	rankingRepo repositories.RankingRepository,
	sessionRepo repositories.SessionRepository,
	userRepo repositories.UserRepository,
	automationRepo repositories.AutomationLogRepository,
	loc *time.Location,
	logger *slog.Logger,
) AuditService {
	return &auditService{
		competitionRepo: competitionRepo,
		rankingRepo:     rankingRepo,
		sessionRepo:     sessionRepo,
		userRepo:        userRepo,
		automationRepo:  automationRepo,
		loc:             loc,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *auditService) RunAudit(ctx context.Context) (*AuditReport, error) {
	now := s.now()
	report := &AuditReport{CheckedAt: now}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		duplicates, err := s.rankingRepo.FindDuplicatePairs(gctx)
		if err != nil {
			return fmt.Errorf("duplicate ranking check: %w", err)
		}
		mu.Lock()
		report.DuplicateRankings = duplicates
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		orphans, err := s.sessionRepo.ListOrphaned(gctx)
		if err != nil {
			return fmt.Errorf("orphaned session check: %w", err)
		}
		mu.Lock()
		report.OrphanedSessions = orphans
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		unranked, err := s.findUnrankedUsers(gctx, now)
		if err != nil {
			return fmt.Errorf("unranked user check: %w", err)
		}
		mu.Lock()
		report.UnrankedUserIDs = unranked
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		stale, err := s.findStaleStatuses(gctx, now)
		if err != nil {
			return fmt.Errorf("stale status check: %w", err)
		}
		mu.Lock()
		report.StaleStatuses = stale
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		pending, err := s.automationRepo.CountPending(gctx)
		if err != nil {
			return fmt.Errorf("pending automation check: %w", err)
		}
		mu.Lock()
		report.PendingAutomations = pending
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Recommendations = buildRecommendations(report)
	report.Healthy = len(report.Recommendations) == 0

	s.logger.InfoContext(ctx, "integrity audit finished",
		slog.Bool("healthy", report.Healthy),
		slog.Int("duplicate_rankings", len(report.DuplicateRankings)),
		slog.Int("orphaned_sessions", len(report.OrphanedSessions)),
		slog.Int("unranked_users", len(report.UnrankedUserIDs)),
		slog.Int("stale_statuses", len(report.StaleStatuses)),
		slog.Int("pending_automations", report.PendingAutomations))

	return report, nil
}

// findUnrankedUsers reports users carrying a positive live score without a
// ranking row for the current weekly period. They played, but aggregation
// has not covered them yet.
func (s *auditService) findUnrankedUsers(ctx context.Context, now time.Time) ([]int, error) {
	scored, err := s.userRepo.ListWithPositiveScore(ctx)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}

	period := schedule.PeriodFor(models.KindWeekly, now.In(s.loc), s.loc)
	entries, err := s.rankingRepo.ListByPeriod(ctx, nil, period.String())
	if err != nil {
		return nil, err
	}

	ranked := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		ranked[e.UserID] = struct{}{}
	}

	var unranked []int
	for _, id := range scored {
		if _, ok := ranked[id]; !ok {
			unranked = append(unranked, id)
		}
	}
	return unranked, nil
}

func (s *auditService) findStaleStatuses(ctx context.Context, now time.Time) ([]StaleStatus, error) {
	competitions, err := s.competitionRepo.ListNonTerminal(ctx, nil)
	if err != nil {
		return nil, err
	}

	var stale []StaleStatus
	for _, c := range competitions {
		calculated := schedule.CalculateStatus(c.StartAt, c.EndAt, now, s.loc)
		if calculated != c.Status {
			stale = append(stale, StaleStatus{
				CompetitionID:    c.ID,
				StoredStatus:     c.Status,
				CalculatedStatus: calculated,
			})
		}
	}
	return stale, nil
}

func buildRecommendations(report *AuditReport) []string {
	var recs []string
	if n := len(report.DuplicateRankings); n > 0 {
		recs = append(recs, fmt.Sprintf("%d duplicate ranking pair(s) found; re-run aggregation for the affected periods", n))
	}
	if n := len(report.OrphanedSessions); n > 0 {
		recs = append(recs, fmt.Sprintf("%d completed session(s) are not linked to any competition; backfill or discard them", n))
	}
	if n := len(report.UnrankedUserIDs); n > 0 {
		recs = append(recs, fmt.Sprintf("%d user(s) hold live scores with no ranking entry this week; run ranking aggregation", n))
	}
	if n := len(report.StaleStatuses); n > 0 {
		recs = append(recs, fmt.Sprintf("%d competition(s) carry a stale status; run status reconciliation", n))
	}
	if report.PendingAutomations > 0 {
		recs = append(recs, fmt.Sprintf("%d automation run(s) stuck in pending; inspect the automation log", report.PendingAutomations))
	}
	return recs
}
