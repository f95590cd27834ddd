package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordarena/arena-backend/live"
	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
	"github.com/wordarena/arena-backend/schedule"
)

// StatusUpdate is one corrected row of a reconciliation sweep.
type StatusUpdate struct {
	ID        int                      `json:"id"`
	OldStatus models.CompetitionStatus `json:"old_status"`
	NewStatus models.CompetitionStatus `json:"new_status"`
}

// ReconcileResult summarizes one sweep. Failed rows never abort the sweep;
// the result reports partial success.
type ReconcileResult struct {
	Verified int            `json:"verified"`
	Updated  int            `json:"updated"`
	Failed   int            `json:"failed"`
	Updates  []StatusUpdate `json:"updates"`
}

// CompetitionFinalizer is the slice of the finalization service the
// reconciler needs when a transition lands on completed.
type CompetitionFinalizer interface {
	FinalizeCompetition(ctx context.Context, competitionID int) (*FinalizeResult, error)
}

type ReconcilerService interface {
	// ReconcileStatuses re-derives the status of every non-terminal
	// competition and corrects mismatched rows. Safe to invoke
	// concurrently or redundantly: re-deriving and re-writing the same
	// status is a no-op, and the conditional update loses races cleanly.
	ReconcileStatuses(ctx context.Context) (*ReconcileResult, error)
}

type reconcilerService struct {
	competitionRepo repositories.CompetitionRepository
	automationRepo  repositories.AutomationLogRepository
	finalizer       CompetitionFinalizer
	loc             *time.Location
	hub             *live.Hub
	logger          *slog.Logger
	now             func() time.Time
}

func NewReconcilerService(
	competitionRepo repositories.CompetitionRepository,
	automationRepo repositories.AutomationLogRepository,
	finalizer CompetitionFinalizer,
	loc *time.Location,
	hub *live.Hub,
	logger *slog.Logger,
) ReconcilerService {
	return &reconcilerService{
		competitionRepo: competitionRepo,
		automationRepo:  automationRepo,
		finalizer:       finalizer,
		loc:             loc,
		hub:             hub,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *reconcilerService) ReconcileStatuses(ctx context.Context) (*ReconcileResult, error) {
	now := s.now()

	logEntry := &models.AutomationLogEntry{
		Type:             models.AutomationTypeReconcile,
		Status:           models.AutomationPending,
		ScheduledTime:    now,
		SettingsSnapshot: reconcileSettings(s.loc, now),
	}
	if err := s.automationRepo.Create(ctx, logEntry); err != nil {
		// The sweep itself matters more than its audit record.
		s.logger.WarnContext(ctx, "failed to create automation log entry", slog.Any("error", err))
		logEntry = nil
	}

	competitions, err := s.competitionRepo.ListNonTerminal(ctx, nil)
	if err != nil {
		err = fmt.Errorf("failed to load competitions for reconciliation: %w", err)
		s.closeLog(ctx, logEntry, 0, err)
		return nil, err
	}

	result := &ReconcileResult{Updates: []StatusUpdate{}}
	for _, competition := range competitions {
		result.Verified++

		correct := schedule.CalculateStatus(competition.StartAt, competition.EndAt, now, s.loc)
		if correct == competition.Status {
			continue
		}
		if !isValidStatusTransition(competition.Status, correct) {
			// Exhaustiveness guard; with a monotonic calculator this
			// cannot fire unless stored data is malformed.
			s.logger.ErrorContext(ctx, "refusing invalid status transition",
				slog.Int("competition_id", competition.ID),
				slog.String("stored", string(competition.Status)),
				slog.String("calculated", string(correct)))
			result.Failed++
			continue
		}

		applied, err := s.competitionRepo.UpdateStatusIf(ctx, nil, competition.ID, competition.Status, correct)
		if err != nil {
			// A failure updating one row must not abort the sweep.
			s.logger.ErrorContext(ctx, "failed to update competition status",
				slog.Int("competition_id", competition.ID),
				slog.String("old_status", string(competition.Status)),
				slog.String("new_status", string(correct)),
				slog.Any("error", err))
			result.Failed++
			continue
		}
		if !applied {
			// A concurrent sweep got there first; nothing left to do.
			s.logger.InfoContext(ctx, "status already corrected concurrently",
				slog.Int("competition_id", competition.ID),
				slog.String("new_status", string(correct)))
			continue
		}

		result.Updated++
		result.Updates = append(result.Updates, StatusUpdate{
			ID:        competition.ID,
			OldStatus: competition.Status,
			NewStatus: correct,
		})
		s.logger.InfoContext(ctx, "competition status reconciled",
			slog.Int("competition_id", competition.ID),
			slog.String("title", competition.Title),
			slog.String("old_status", string(competition.Status)),
			slog.String("new_status", string(correct)))

		if s.hub != nil {
			s.hub.Publish(live.CompetitionRoom(competition.ID), live.EventCompetitionStatus, StatusUpdate{
				ID:        competition.ID,
				OldStatus: competition.Status,
				NewStatus: correct,
			})
		}

		// Crossing the end boundary for the first time triggers
		// finalization. Its failure is isolated like any row failure:
		// re-running the sweep retries it.
		if correct == models.StatusCompleted && s.finalizer != nil {
			if _, err := s.finalizer.FinalizeCompetition(ctx, competition.ID); err != nil {
				s.logger.ErrorContext(ctx, "finalization failed after status transition",
					slog.Int("competition_id", competition.ID),
					slog.Any("error", err))
				result.Failed++
			}
		}
	}

	s.closeLog(ctx, logEntry, result.Updated, nil)
	return result, nil
}

func (s *reconcilerService) closeLog(ctx context.Context, logEntry *models.AutomationLogEntry, updated int, runErr error) {
	if logEntry == nil {
		return
	}
	executedAt := s.now()
	var err error
	if runErr != nil {
		err = s.automationRepo.MarkFailed(ctx, logEntry.ID, executedAt, runErr.Error())
	} else {
		err = s.automationRepo.MarkCompleted(ctx, logEntry.ID, executedAt, updated)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to close automation log entry",
			slog.Int("log_id", logEntry.ID), slog.Any("error", err))
	}
}

// reconcileSettings is the forensic payload stored with each sweep record.
func reconcileSettings(loc *time.Location, triggeredAt time.Time) json.RawMessage {
	payload, err := json.Marshal(map[string]string{
		"timezone":     loc.String(),
		"triggered_at": triggeredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil
	}
	return payload
}
