package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
)

type CreateCompetitionInput struct {
	Title           string                 `json:"title"`
	Theme           *string                `json:"theme"`
	Kind            models.CompetitionKind `json:"kind"`
	StartAt         time.Time              `json:"start_at"`
	EndAt           time.Time              `json:"end_at"`
	MaxParticipants int                    `json:"max_participants"`
	PrizePool       float64                `json:"prize_pool"`
}

type ListCompetitionsFilter struct {
	Kind   *models.CompetitionKind
	Status *models.CompetitionStatus
	Limit  int
	Offset int
}

// CompetitionStatusView pairs the stored status with the one re-derived at
// request time, for dashboards showing live countdowns.
type CompetitionStatusView struct {
	Competition      *models.Competition      `json:"competition"`
	StoredStatus     models.CompetitionStatus `json:"stored_status"`
	CalculatedStatus models.CompetitionStatus `json:"calculated_status"`
	CheckedAt        time.Time                `json:"checked_at"`
}

type CompetitionService interface {
	CreateCompetition(ctx context.Context, input CreateCompetitionInput) (*models.Competition, error)
	GetCompetitionByID(ctx context.Context, id int) (*models.Competition, error)
	GetCompetitionStatus(ctx context.Context, id int) (*CompetitionStatusView, error)
	ListCompetitions(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)
	UpdateCompetition(ctx context.Context, id int, input CreateCompetitionInput) (*models.Competition, error)
	DeleteCompetition(ctx context.Context, id int) error
}

type competitionService struct {
	competitionRepo repositories.CompetitionRepository
	loc             *time.Location
	now             func() time.Time
}

func NewCompetitionService(competitionRepo repositories.CompetitionRepository, loc *time.Location) CompetitionService {
	return &competitionService{
		competitionRepo: competitionRepo,
		loc:             loc,
		now:             time.Now,
	}
}

func (s *competitionService) CreateCompetition(ctx context.Context, input CreateCompetitionInput) (*models.Competition, error) {
	competition, err := s.buildCompetition(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := schedule.CalculateStatus(competition.StartAt, competition.EndAt, now, s.loc)
	if status == models.StatusCompleted {
		return nil, ErrCompetitionAlreadyOver
	}
	competition.Status = status

	// At most one weekly competition may be active at any instant.
	if competition.Kind == models.KindWeekly && status == models.StatusActive {
		activeCount, err := s.competitionRepo.CountByKindAndStatus(ctx, nil, models.KindWeekly, models.StatusActive)
		if err != nil {
			return nil, fmt.Errorf("failed to check active weekly competitions: %w", err)
		}
		if activeCount > 0 {
			return nil, ErrWeeklyAlreadyActive
		}
	}

	if err := s.competitionRepo.Create(ctx, competition); err != nil {
		if errors.Is(err, repositories.ErrCompetitionTitleConflict) {
			return nil, ErrCompetitionTitleConflict
		}
		return nil, fmt.Errorf("failed to create competition: %w", err)
	}
	return competition, nil
}

func (s *competitionService) buildCompetition(input CreateCompetitionInput) (*models.Competition, error) {
	if input.Title == "" {
		return nil, ErrCompetitionTitleRequired
	}
	if !isValidKind(input.Kind) {
		return nil, ErrCompetitionInvalidKind
	}
	if input.MaxParticipants < 0 {
		return nil, ErrCompetitionInvalidCapacity
	}

	startAt := input.StartAt
	endAt := input.EndAt
	prizePool := input.PrizePool

	if input.Kind == models.KindDaily {
		// Daily competitions always end on the last instant of the start
		// civil day, and never carry a prize pool.
		endAt = schedule.EndOfCivilDay(startAt, s.loc)
		if prizePool != 0 {
			return nil, ErrDailyPrizePoolForbidden
		}
	}

	if err := validateCompetitionDates(startAt, endAt); err != nil {
		return nil, err
	}

	return &models.Competition{
		Title:           input.Title,
		Theme:           input.Theme,
		Kind:            input.Kind,
		StartAt:         startAt.UTC(),
		EndAt:           endAt.UTC(),
		MaxParticipants: input.MaxParticipants,
		PrizePool:       prizePool,
	}, nil
}

func (s *competitionService) GetCompetitionByID(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.competitionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return competition, nil
}

func (s *competitionService) GetCompetitionStatus(ctx context.Context, id int) (*CompetitionStatusView, error) {
	competition, err := s.GetCompetitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	calculated := competition.Status
	// Terminal statuses are never re-derived; cancelled stays cancelled.
	if !competition.Status.IsTerminal() {
		calculated = schedule.CalculateStatus(competition.StartAt, competition.EndAt, now, s.loc)
	}

	return &CompetitionStatusView{
		Competition:      competition,
		StoredStatus:     competition.Status,
		CalculatedStatus: calculated,
		CheckedAt:        now.UTC(),
	}, nil
}

func (s *competitionService) ListCompetitions(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	return s.competitionRepo.List(ctx, repositories.ListCompetitionsFilter{
		Kind:   filter.Kind,
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (s *competitionService) UpdateCompetition(ctx context.Context, id int, input CreateCompetitionInput) (*models.Competition, error) {
	existing, err := s.GetCompetitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.buildCompetition(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.CreatedAt = existing.CreatedAt

	if err := s.competitionRepo.Update(ctx, updated); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCompetitionNotFound):
			return nil, ErrCompetitionNotFound
		case errors.Is(err, repositories.ErrCompetitionTitleConflict):
			return nil, ErrCompetitionTitleConflict
		}
		return nil, fmt.Errorf("failed to update competition %d: %w", id, err)
	}
	return updated, nil
}

// DeleteCompetition is an administrative override, not a lifecycle
// transition.
func (s *competitionService) DeleteCompetition(ctx context.Context, id int) error {
	err := s.competitionRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrCompetitionNotFound) {
		return ErrCompetitionNotFound
	}
	return err
}
