package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
)

type DashboardService interface {
	GetStats(ctx context.Context) (*models.DashboardStats, error)
}

type dashboardService struct {
	userRepo        repositories.UserRepository
	competitionRepo repositories.CompetitionRepository
	sessionRepo     repositories.SessionRepository
	rankingRepo     repositories.RankingRepository
	snapshotRepo    repositories.SnapshotRepository
	automationRepo  repositories.AutomationLogRepository
}

func NewDashboardService(
	userRepo repositories.UserRepository,
	competitionRepo repositories.CompetitionRepository,
	sessionRepo repositories.SessionRepository,
	rankingRepo repositories.RankingRepository,
	snapshotRepo repositories.SnapshotRepository,
	automationRepo repositories.AutomationLogRepository,
) DashboardService {
	return &dashboardService{
		userRepo:        userRepo,
		competitionRepo: competitionRepo,
		sessionRepo:     sessionRepo,
		rankingRepo:     rankingRepo,
		snapshotRepo:    snapshotRepo,
		automationRepo:  automationRepo,
	}
}

func (s *dashboardService) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	count := func(name string, fetch func(context.Context) (int, error), assign func(*models.DashboardStats, int)) {
		g.Go(func() error {
			n, err := fetch(gctx)
			if err != nil {
				return fmt.Errorf("%s count: %w", name, err)
			}
			mu.Lock()
			assign(stats, n)
			mu.Unlock()
			return nil
		})
	}

	count("player", s.userRepo.Count, func(d *models.DashboardStats, n int) { d.PlayersTotal = n })
	count("competition", func(ctx context.Context) (int, error) {
		return s.competitionRepo.Count(ctx, nil)
	}, func(d *models.DashboardStats, n int) { d.CompetitionsTotal = n })
	count("active competition", func(ctx context.Context) (int, error) {
		active := models.StatusActive
		return s.competitionRepo.Count(ctx, &active)
	}, func(d *models.DashboardStats, n int) { d.ActiveCompetitions = n })
	count("completed session", s.sessionRepo.CountCompleted, func(d *models.DashboardStats, n int) { d.CompletedSessions = n })
	count("ranking entry", s.rankingRepo.Count, func(d *models.DashboardStats, n int) { d.RankingEntriesTotal = n })
	count("snapshot", s.snapshotRepo.Count, func(d *models.DashboardStats, n int) { d.SnapshotsTotal = n })
	count("pending automation", s.automationRepo.CountPending, func(d *models.DashboardStats, n int) { d.PendingAutomationRun = n })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
