package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/wordarena/arena-backend/models"
)

var (
	ErrSnapshotNotFound      = errors.New("finalization snapshot not found")
	ErrSnapshotAlreadyExists = errors.New("finalization snapshot already exists for this competition")
)

type SnapshotRepository interface {
	// Create persists the immutable snapshot. The uniqueness constraint on
	// competition_id makes a duplicate insert fail with
	// ErrSnapshotAlreadyExists, which is the finalization idempotency guard.
	Create(ctx context.Context, exec SQLExecutor, snapshot *models.FinalizationSnapshot) error
	GetByCompetitionID(ctx context.Context, competitionID int) (*models.FinalizationSnapshot, error)
	ExistsForCompetition(ctx context.Context, exec SQLExecutor, competitionID int) (bool, error)
	Count(ctx context.Context) (int, error)
}

type postgresSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &postgresSnapshotRepository{db: db}
}

func (r *postgresSnapshotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSnapshotRepository) Create(ctx context.Context, exec SQLExecutor, s *models.FinalizationSnapshot) error {
	executor := r.getExecutor(exec)

	standingsJSON, err := json.Marshal(s.Standings)
	if err != nil {
		return fmt.Errorf("marshal snapshot standings: %w", err)
	}

	query := `
		INSERT INTO finalization_snapshots
			(competition_id, standings, total_participants, total_prize_pool, archive_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, finalized_at`

	err = executor.QueryRowContext(ctx, query,
		s.CompetitionID, standingsJSON, s.TotalParticipants, s.TotalPrizePool, s.ArchiveURL,
	).Scan(&s.ID, &s.FinalizedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSnapshotAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresSnapshotRepository) GetByCompetitionID(ctx context.Context, competitionID int) (*models.FinalizationSnapshot, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, competition_id, standings, total_participants, total_prize_pool, archive_url, finalized_at
		FROM finalization_snapshots
		WHERE competition_id = $1`

	s := &models.FinalizationSnapshot{}
	var standingsJSON []byte
	err := executor.QueryRowContext(ctx, query, competitionID).Scan(
		&s.ID, &s.CompetitionID, &standingsJSON, &s.TotalParticipants, &s.TotalPrizePool, &s.ArchiveURL, &s.FinalizedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(standingsJSON, &s.Standings); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot standings for competition %d: %w", competitionID, err)
	}
	return s, nil
}

func (r *postgresSnapshotRepository) ExistsForCompetition(ctx context.Context, exec SQLExecutor, competitionID int) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM finalization_snapshots WHERE competition_id = $1)`, competitionID,
	).Scan(&exists)
	return exists, err
}

func (r *postgresSnapshotRepository) Count(ctx context.Context) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM finalization_snapshots`).Scan(&count)
	return count, err
}
