package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/wordarena/arena-backend/live"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
)

// AggregateResult is the structured outcome of one aggregation run.
type AggregateResult struct {
	PeriodKey    string                `json:"period_key"`
	Competitions int                   `json:"competitions"`
	Entries      []models.RankingEntry `json:"entries"`
}

type RankingService interface {
	// AggregateRanking recomputes the ranking for one period and upserts
	// one RankingEntry per user. Deterministic: identical inputs produce
	// identical stored rows, so re-running (or racing) converges.
	AggregateRanking(ctx context.Context, periodKey string) (*AggregateResult, error)
	GetRanking(ctx context.Context, periodKey string) ([]models.RankingEntry, error)
}

type rankingService struct {
	competitionRepo   repositories.CompetitionRepository
	participationRepo repositories.ParticipationRepository
	rankingRepo       repositories.RankingRepository
	userRepo          repositories.UserRepository
	prizes            models.PrizeTable
	loc               *time.Location
	hub               *live.Hub
	logger            *slog.Logger
	now               func() time.Time
}

func NewRankingService(
	competitionRepo repositories.CompetitionRepository,
	participationRepo repositories.ParticipationRepository,
	rankingRepo repositories.RankingRepository,
	userRepo repositories.UserRepository,
	prizes models.PrizeTable,
	loc *time.Location,
	hub *live.Hub,
	logger *slog.Logger,
) RankingService {
	return &rankingService{
		competitionRepo:   competitionRepo,
		participationRepo: participationRepo,
		rankingRepo:       rankingRepo,
		userRepo:          userRepo,
		prizes:            prizes,
		loc:               loc,
		hub:               hub,
		logger:            logger,
		now:               time.Now,
	}
}

// userScore is one user's accumulated score within a period, carrying the
// earliest join timestamp for tie-breaking.
type userScore struct {
	userID   int
	score    int
	earliest time.Time
}

func (s *rankingService) AggregateRanking(ctx context.Context, periodKey string) (*AggregateResult, error) {
	period, err := schedule.ParsePeriodKey(periodKey, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriodKey, err)
	}

	competitions, err := s.competitionRepo.ListByKindAndStartRange(ctx, nil, period.Kind, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitions for period %s: %w", periodKey, err)
	}

	// Group scores per user across the period's competitions.
	byUser := make(map[int]*userScore)
	for _, competition := range competitions {
		participations, err := s.participationRepo.ListByCompetition(ctx, nil, competition.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load participations for competition %d: %w", competition.ID, err)
		}
		for _, p := range participations {
			entry, ok := byUser[p.UserID]
			if !ok {
				byUser[p.UserID] = &userScore{userID: p.UserID, score: p.Score, earliest: p.JoinedAt}
				continue
			}
			entry.score += p.Score
			if p.JoinedAt.Before(entry.earliest) {
				entry.earliest = p.JoinedAt
			}
		}
	}

	entries := s.rankScores(period, byUser)

	if err := s.rankingRepo.UpsertBatch(ctx, nil, entries); err != nil {
		return nil, fmt.Errorf("failed to upsert ranking for period %s: %w", periodKey, err)
	}

	// Write positions back onto the live rows: participations for every
	// competition in the period, plus the weekly best-position tracker.
	positionByUser := make(map[int]int, len(entries))
	for _, e := range entries {
		positionByUser[e.UserID] = e.Position
	}
	for _, competition := range competitions {
		for userID, position := range positionByUser {
			pos := position
			err := s.participationRepo.UpdatePosition(ctx, nil, competition.ID, userID, &pos)
			if err != nil && !errors.Is(err, repositories.ErrParticipationNotFound) {
				s.logger.WarnContext(ctx, "failed to write position back to participation",
					slog.Int("competition_id", competition.ID),
					slog.Int("user_id", userID),
					slog.Any("error", err))
			}
		}
		if period.Kind == models.KindWeekly {
			for userID, position := range positionByUser {
				if err := s.userRepo.ImproveBestPosition(ctx, nil, userID, position); err != nil {
					s.logger.WarnContext(ctx, "failed to update best position",
						slog.Int("user_id", userID), slog.Any("error", err))
				}
			}
		}
	}

	if s.hub != nil {
		s.hub.Publish(live.AdminRoom, live.EventRankingUpdated, map[string]interface{}{
			"period_key": periodKey,
			"entries":    len(entries),
		})
	}

	s.logger.InfoContext(ctx, "ranking aggregated",
		slog.String("period_key", periodKey),
		slog.Int("competitions", len(competitions)),
		slog.Int("entries", len(entries)))

	return &AggregateResult{
		PeriodKey:    periodKey,
		Competitions: len(competitions),
		Entries:      entries,
	}, nil
}

// rankScores orders users score-descending with a total tie-break (earlier
// first score wins, then the lower user id) so re-running never flips
// positions, and assigns strict 1-based positions with no gaps.
func (s *rankingService) rankScores(period schedule.PeriodKey, byUser map[int]*userScore) []models.RankingEntry {
	scores := make([]*userScore, 0, len(byUser))
	for _, entry := range byUser {
		scores = append(scores, entry)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		if !scores[i].earliest.Equal(scores[j].earliest) {
			return scores[i].earliest.Before(scores[j].earliest)
		}
		return scores[i].userID < scores[j].userID
	})

	prizes := s.prizes
	if period.Kind == models.KindDaily {
		// Daily competitions never pay out.
		prizes = nil
	}

	updatedAt := s.now().UTC()
	entries := make([]models.RankingEntry, len(scores))
	for i, entry := range scores {
		entries[i] = models.RankingEntry{
			PeriodKey:   period.String(),
			UserID:      entry.userID,
			Score:       entry.score,
			Position:    i + 1,
			PrizeAmount: prizes.AmountFor(i + 1),
			UpdatedAt:   updatedAt,
		}
	}
	return entries
}

func (s *rankingService) GetRanking(ctx context.Context, periodKey string) ([]models.RankingEntry, error) {
	if _, err := schedule.ParsePeriodKey(periodKey, s.loc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriodKey, err)
	}
	return s.rankingRepo.ListByPeriod(ctx, nil, periodKey)
}
