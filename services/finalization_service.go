package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordarena/arena-backend/live"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
	"github.com/wordarena/arena-backend/storage"
)

// FinalizeResult is the structured outcome of one finalization call.
// AlreadyFinalized reports the idempotent no-op path.
type FinalizeResult struct {
	Success           bool   `json:"success"`
	AlreadyFinalized  bool   `json:"already_finalized"`
	CompetitionID     int    `json:"competition_id"`
	SnapshotID        int    `json:"snapshot_id,omitempty"`
	ParticipantsReset int    `json:"participants_reset"`
	ActivatedNextID   *int   `json:"activated_next_id,omitempty"`
	ArchiveURL        string `json:"archive_url,omitempty"`
}

type FinalizationService interface {
	// FinalizeCompetition snapshots final standings, resets the weekly
	// live counters, marks the competition completed and promotes the
	// next scheduled one. Re-invoking on an already-finalized competition
	// is a safe no-op guarded by the snapshot uniqueness constraint.
	FinalizeCompetition(ctx context.Context, competitionID int) (*FinalizeResult, error)
}

type finalizationService struct {
	competitionRepo   repositories.CompetitionRepository
	participationRepo repositories.ParticipationRepository
	snapshotRepo      repositories.SnapshotRepository
	userRepo          repositories.UserRepository
	automationRepo    repositories.AutomationLogRepository
	ranking           RankingService
	archiver          storage.SnapshotArchiver
	loc               *time.Location
	hub               *live.Hub
	logger            *slog.Logger
	now               func() time.Time
}

func NewFinalizationService(
	competitionRepo repositories.CompetitionRepository,
	participationRepo repositories.ParticipationRepository,
	snapshotRepo repositories.SnapshotRepository,
	userRepo repositories.UserRepository,
	automationRepo repositories.AutomationLogRepository,
	ranking RankingService,
	archiver storage.SnapshotArchiver,
	loc *time.Location,
	hub *live.Hub,
	logger *slog.Logger,
) FinalizationService {
	return &finalizationService{
		competitionRepo:   competitionRepo,
		participationRepo: participationRepo,
		snapshotRepo:      snapshotRepo,
		userRepo:          userRepo,
		automationRepo:    automationRepo,
		ranking:           ranking,
		archiver:          archiver,
		loc:               loc,
		hub:               hub,
		logger:            logger,
		now:               time.Now,
	}
}

func (s *finalizationService) FinalizeCompetition(ctx context.Context, competitionID int) (*FinalizeResult, error) {
	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to load competition %d: %w", competitionID, err)
	}

	now := s.now()

	// Finalization applies only once the end boundary has actually been
	// crossed (or the row already says completed).
	if competition.Status != models.StatusCompleted &&
		schedule.CalculateStatus(competition.StartAt, competition.EndAt, now, s.loc) != models.StatusCompleted {
		return nil, ErrFinalizeNotDue
	}

	// Idempotency guard: one snapshot per competition, ever.
	exists, err := s.snapshotRepo.ExistsForCompetition(ctx, nil, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot existence for competition %d: %w", competitionID, err)
	}
	if exists {
		return &FinalizeResult{
			Success:          true,
			AlreadyFinalized: true,
			CompetitionID:    competitionID,
		}, nil
	}

	logEntry := &models.AutomationLogEntry{
		Type:             models.AutomationTypeFinalization,
		Status:           models.AutomationPending,
		ScheduledTime:    now,
		SettingsSnapshot: finalizationSettings(competition),
	}
	if err := s.automationRepo.Create(ctx, logEntry); err != nil {
		s.logger.WarnContext(ctx, "failed to create automation log entry", slog.Any("error", err))
		logEntry = nil
	}

	result, err := s.finalize(ctx, competition, now)
	if err != nil {
		s.failLog(ctx, logEntry, err)
		return nil, err
	}

	if logEntry != nil {
		if markErr := s.automationRepo.MarkCompleted(ctx, logEntry.ID, s.now(), result.ParticipantsReset); markErr != nil {
			s.logger.WarnContext(ctx, "failed to close automation log entry",
				slog.Int("log_id", logEntry.ID), slog.Any("error", markErr))
		}
	}
	return result, nil
}

func (s *finalizationService) finalize(ctx context.Context, competition *models.Competition, now time.Time) (*FinalizeResult, error) {
	period := schedule.PeriodFor(competition.Kind, competition.StartAt.In(s.loc), s.loc)

	// Step 1: final standings via the ranking aggregator.
	aggregate, err := s.ranking.AggregateRanking(ctx, period.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate final standings for competition %d: %w", competition.ID, err)
	}

	standings := make([]models.SnapshotStanding, len(aggregate.Entries))
	totalPrize := 0.0
	for i, entry := range aggregate.Entries {
		standings[i] = models.SnapshotStanding{
			UserID:   entry.UserID,
			Score:    entry.Score,
			Position: entry.Position,
			Prize:    entry.PrizeAmount,
		}
		totalPrize += entry.PrizeAmount
	}

	snapshot := &models.FinalizationSnapshot{
		CompetitionID:     competition.ID,
		Standings:         standings,
		TotalParticipants: len(standings),
		TotalPrizePool:    totalPrize,
	}

	// Step 2a: archive the snapshot payload to object storage first so the
	// database row can reference it. Best effort: the database copy is the
	// authoritative one.
	archiveURL := s.archiveSnapshot(ctx, competition, snapshot, now)
	if archiveURL != "" {
		snapshot.ArchiveURL = &archiveURL
	}

	// Step 2b: persist the immutable snapshot. A concurrent finalizer
	// winning the race surfaces here as the unique-constraint error.
	if err := s.snapshotRepo.Create(ctx, nil, snapshot); err != nil {
		if errors.Is(err, repositories.ErrSnapshotAlreadyExists) {
			return &FinalizeResult{
				Success:          true,
				AlreadyFinalized: true,
				CompetitionID:    competition.ID,
			}, nil
		}
		return nil, fmt.Errorf("failed to persist finalization snapshot for competition %d: %w", competition.ID, err)
	}

	// Step 3: reset live weekly counters. Weekly scores live on the
	// mutable player profile; daily scores exist only in participations.
	participantsReset := 0
	if competition.Kind == models.KindWeekly {
		userIDs := make([]int, len(standings))
		for i, st := range standings {
			userIDs[i] = st.UserID
		}
		participantsReset, err = s.userRepo.ResetLiveScores(ctx, nil, userIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to reset live scores after snapshot %d: %w", snapshot.ID, err)
		}
	}

	// Step 4: mark completed if the reconciler has not already done so.
	if competition.Status != models.StatusCompleted {
		if _, err := s.competitionRepo.UpdateStatusIf(ctx, nil, competition.ID, competition.Status, models.StatusCompleted); err != nil {
			return nil, fmt.Errorf("failed to mark competition %d completed: %w", competition.ID, err)
		}
	}

	// Step 5: promote the next scheduled competition of the same kind.
	activatedNextID, err := s.promoteNext(ctx, competition.Kind, now)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(live.CompetitionRoom(competition.ID), live.EventFinalized, map[string]interface{}{
			"competition_id":     competition.ID,
			"snapshot_id":        snapshot.ID,
			"total_participants": snapshot.TotalParticipants,
			"total_prize_pool":   snapshot.TotalPrizePool,
		})
	}

	s.logger.InfoContext(ctx, "competition finalized",
		slog.Int("competition_id", competition.ID),
		slog.String("kind", string(competition.Kind)),
		slog.Int("snapshot_id", snapshot.ID),
		slog.Int("participants", snapshot.TotalParticipants),
		slog.Int("participants_reset", participantsReset))

	return &FinalizeResult{
		Success:           true,
		CompetitionID:     competition.ID,
		SnapshotID:        snapshot.ID,
		ParticipantsReset: participantsReset,
		ActivatedNextID:   activatedNextID,
		ArchiveURL:        archiveURL,
	}, nil
}

// promoteNext activates the earliest scheduled competition of the kind, but
// only when no other one is active and its own window says active. An early
// promotion would just be reverted by the next reconciliation sweep.
func (s *finalizationService) promoteNext(ctx context.Context, kind models.CompetitionKind, now time.Time) (*int, error) {
	activeCount, err := s.competitionRepo.CountByKindAndStatus(ctx, nil, kind, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to count active %s competitions: %w", kind, err)
	}
	if activeCount > 0 {
		return nil, nil
	}

	next, err := s.competitionRepo.NextScheduled(ctx, nil, kind, now)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find next scheduled %s competition: %w", kind, err)
	}

	if schedule.CalculateStatus(next.StartAt, next.EndAt, now, s.loc) != models.StatusActive {
		return nil, nil
	}

	applied, err := s.competitionRepo.UpdateStatusIf(ctx, nil, next.ID, models.StatusScheduled, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to activate next competition %d: %w", next.ID, err)
	}
	if !applied {
		return nil, nil
	}

	s.logger.InfoContext(ctx, "next competition activated",
		slog.Int("competition_id", next.ID),
		slog.String("kind", string(kind)))

	if s.hub != nil {
		s.hub.Publish(live.CompetitionRoom(next.ID), live.EventCompetitionStatus, StatusUpdate{
			ID:        next.ID,
			OldStatus: models.StatusScheduled,
			NewStatus: models.StatusActive,
		})
	}

	id := next.ID
	return &id, nil
}

func (s *finalizationService) archiveSnapshot(ctx context.Context, competition *models.Competition, snapshot *models.FinalizationSnapshot, now time.Time) string {
	if s.archiver == nil {
		return ""
	}
	payload, err := json.Marshal(struct {
		*models.FinalizationSnapshot
		CompetitionTitle string    `json:"competition_title"`
		ArchivedAt       time.Time `json:"archived_at"`
	}{snapshot, competition.Title, now.UTC()})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to marshal snapshot for archive",
			slog.Int("competition_id", competition.ID), slog.Any("error", err))
		return ""
	}

	key := fmt.Sprintf("snapshots/competition_%d.json", competition.ID)
	result, err := s.archiver.Archive(ctx, key, "application/json", payload)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to archive snapshot",
			slog.Int("competition_id", competition.ID),
			slog.String("key", key),
			slog.Any("error", err))
		return ""
	}
	return result.Location
}

func (s *finalizationService) failLog(ctx context.Context, logEntry *models.AutomationLogEntry, runErr error) {
	if logEntry == nil {
		return
	}
	if err := s.automationRepo.MarkFailed(ctx, logEntry.ID, s.now(), runErr.Error()); err != nil {
		s.logger.WarnContext(ctx, "failed to record finalization failure",
			slog.Int("log_id", logEntry.ID), slog.Any("error", err))
	}
}

func finalizationSettings(competition *models.Competition) json.RawMessage {
	payload, err := json.Marshal(map[string]interface{}{
		"competition_id": competition.ID,
		"kind":           competition.Kind,
		"title":          competition.Title,
		"start_at":       competition.StartAt.UTC().Format(time.RFC3339),
		"end_at":         competition.EndAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil
	}
	return payload
}
