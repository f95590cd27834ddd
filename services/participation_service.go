package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordarena/arena-backend/live"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
)

type ParticipationService interface {
	// JoinCompetition registers the user. Joining twice is a no-op that
	// returns the existing participation.
	JoinCompetition(ctx context.Context, competitionID, userID int) (*models.Participation, error)
	// StartSession opens a game session, linked to the competition the
	// user is participating in, or standalone when competitionID is nil.
	StartSession(ctx context.Context, userID int, competitionID *int) (*models.GameSession, error)
	// CompleteSession records the final score exactly once and credits it
	// to the linked participation and, for weekly play, the live profile
	// counter.
	CompleteSession(ctx context.Context, sessionID, userID, score int) (*models.GameSession, error)
	GetLeaderboard(ctx context.Context, competitionID int) ([]*models.Participation, error)
}

type participationService struct {
	competitionRepo   repositories.CompetitionRepository
	participationRepo repositories.ParticipationRepository
	sessionRepo       repositories.SessionRepository
	userRepo          repositories.UserRepository
	loc               *time.Location
	hub               *live.Hub
	logger            *slog.Logger
	now               func() time.Time
}

func NewParticipationService(
	competitionRepo repositories.CompetitionRepository,
	participationRepo repositories.ParticipationRepository,
	sessionRepo repositories.SessionRepository,
	userRepo repositories.UserRepository,
	loc *time.Location,
	hub *live.Hub,
	logger *slog.Logger,
) ParticipationService {
	return &participationService{
		competitionRepo:   competitionRepo,
		participationRepo: participationRepo,
		sessionRepo:       sessionRepo,
		userRepo:          userRepo,
		loc:               loc,
		hub:               hub,
		logger:            logger,
		now:               time.Now,
	}
}

func (s *participationService) JoinCompetition(ctx context.Context, competitionID, userID int) (*models.Participation, error) {
	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to load competition %d: %w", competitionID, err)
	}

	// Joining is allowed while the window has not closed. The stored
	// status can lag behind the clock between sweeps, so the derived one
	// decides.
	calculated := schedule.CalculateStatus(competition.StartAt, competition.EndAt, s.now(), s.loc)
	if competition.Status.IsTerminal() || calculated == models.StatusCompleted {
		return nil, ErrJoinNotOpen
	}

	if competition.MaxParticipants > 0 {
		count, countErr := s.participationRepo.CountByCompetition(ctx, competitionID)
		if countErr != nil {
			return nil, fmt.Errorf("failed to count participants of competition %d: %w", competitionID, countErr)
		}
		if count >= competition.MaxParticipants {
			return nil, ErrCompetitionFull
		}
	}

	participation := &models.Participation{
		CompetitionID: competitionID,
		UserID:        userID,
	}
	if err := s.participationRepo.Create(ctx, participation); err != nil {
		if errors.Is(err, repositories.ErrParticipationConflict) {
			return s.participationRepo.GetByCompetitionAndUser(ctx, competitionID, userID)
		}
		if errors.Is(err, repositories.ErrParticipationInvalidRefs) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to register participation: %w", err)
	}

	s.logger.InfoContext(ctx, "user joined competition",
		slog.Int("competition_id", competitionID),
		slog.Int("user_id", userID))

	return participation, nil
}

func (s *participationService) StartSession(ctx context.Context, userID int, competitionID *int) (*models.GameSession, error) {
	if competitionID != nil {
		if _, err := s.participationRepo.GetByCompetitionAndUser(ctx, *competitionID, userID); err != nil {
			if errors.Is(err, repositories.ErrParticipationNotFound) {
				return nil, ErrParticipationNotFound
			}
			return nil, fmt.Errorf("failed to verify participation: %w", err)
		}
	}

	session := &models.GameSession{
		UserID:        userID,
		CompetitionID: competitionID,
		Status:        models.SessionInProgress,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrSessionInvalidRefs) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create game session: %w", err)
	}
	return session, nil
}

func (s *participationService) CompleteSession(ctx context.Context, sessionID, userID, score int) (*models.GameSession, error) {
	if score < 0 {
		return nil, ErrScoreNegative
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if session.UserID != userID {
		return nil, ErrForbiddenOperation
	}
	if session.Status != models.SessionInProgress {
		return nil, ErrSessionNotCompletable
	}

	completedAt := s.now()
	// Complete flips the row only when still in progress; a concurrent
	// completion of the same session loses here and scores nothing twice.
	if err := s.sessionRepo.Complete(ctx, nil, sessionID, score, completedAt); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotCompletable
		}
		return nil, fmt.Errorf("failed to complete session %d: %w", sessionID, err)
	}

	if session.CompetitionID != nil && score > 0 {
		if err := s.creditScore(ctx, *session.CompetitionID, userID, score); err != nil {
			return nil, err
		}
	}

	session.Score = &score
	session.Status = models.SessionCompleted
	session.CompletedAt = &completedAt

	s.logger.InfoContext(ctx, "game session completed",
		slog.Int("session_id", sessionID),
		slog.Int("user_id", userID),
		slog.Int("score", score))

	return session, nil
}

func (s *participationService) creditScore(ctx context.Context, competitionID, userID, score int) error {
	if err := s.participationRepo.AddScore(ctx, nil, competitionID, userID, score); err != nil {
		return fmt.Errorf("failed to credit score to participation: %w", err)
	}

	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		return fmt.Errorf("failed to load competition %d for crediting: %w", competitionID, err)
	}
	if competition.Kind == models.KindWeekly {
		if err := s.userRepo.AddToTotalScore(ctx, nil, userID, score); err != nil {
			return fmt.Errorf("failed to credit weekly live score: %w", err)
		}
	}

	if s.hub != nil {
		s.hub.Publish(live.CompetitionRoom(competitionID), live.EventRankingUpdated, map[string]interface{}{
			"competition_id": competitionID,
			"user_id":        userID,
			"score_delta":    score,
		})
	}
	return nil
}

func (s *participationService) GetLeaderboard(ctx context.Context, competitionID int) ([]*models.Participation, error) {
	if _, err := s.competitionRepo.GetByID(ctx, competitionID); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to load competition %d: %w", competitionID, err)
	}
	return s.participationRepo.ListByCompetition(ctx, nil, competitionID)
}
