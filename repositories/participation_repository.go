package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/wordarena/arena-backend/models"
)

var (
	ErrParticipationNotFound     = errors.New("participation not found")
	ErrParticipationConflict     = errors.New("user is already registered for this competition")
	ErrParticipationInvalidRefs  = errors.New("participation references unknown competition or user")
	ErrParticipationInvalidScore = errors.New("score delta must not be negative")
)

type ParticipationRepository interface {
	Create(ctx context.Context, participation *models.Participation) error
	GetByCompetitionAndUser(ctx context.Context, competitionID, userID int) (*models.Participation, error)
	ListByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]*models.Participation, error)
	// AddScore atomically increments the cumulative score. Score mutation
	// goes through this increment only, never a blind write.
	AddScore(ctx context.Context, exec SQLExecutor, competitionID, userID, delta int) error
	UpdatePosition(ctx context.Context, exec SQLExecutor, competitionID, userID int, position *int) error
	CountByCompetition(ctx context.Context, competitionID int) (int, error)
}

type postgresParticipationRepository struct {
	db *sql.DB
}

func NewPostgresParticipationRepository(db *sql.DB) ParticipationRepository {
	return &postgresParticipationRepository{db: db}
}

func (r *postgresParticipationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipationRepository) Create(ctx context.Context, p *models.Participation) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO participations (competition_id, user_id, score, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, joined_at`

	err := executor.QueryRowContext(ctx, query,
		p.CompetitionID, p.UserID, p.Score, p.Position,
	).Scan(&p.ID, &p.JoinedAt)

	return r.handleParticipationError(err)
}

func (r *postgresParticipationRepository) GetByCompetitionAndUser(ctx context.Context, competitionID, userID int) (*models.Participation, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, competition_id, user_id, score, position, joined_at
		FROM participations
		WHERE competition_id = $1 AND user_id = $2`

	p := &models.Participation{}
	err := executor.QueryRowContext(ctx, query, competitionID, userID).Scan(
		&p.ID, &p.CompetitionID, &p.UserID, &p.Score, &p.Position, &p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipationRepository) ListByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]*models.Participation, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, competition_id, user_id, score, position, joined_at
		FROM participations
		WHERE competition_id = $1
		ORDER BY score DESC, joined_at ASC, user_id ASC`

	rows, err := executor.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participations := make([]*models.Participation, 0)
	for rows.Next() {
		p := &models.Participation{}
		if scanErr := rows.Scan(&p.ID, &p.CompetitionID, &p.UserID, &p.Score, &p.Position, &p.JoinedAt); scanErr != nil {
			return nil, scanErr
		}
		participations = append(participations, p)
	}
	return participations, rows.Err()
}

func (r *postgresParticipationRepository) AddScore(ctx context.Context, exec SQLExecutor, competitionID, userID, delta int) error {
	if delta < 0 {
		return ErrParticipationInvalidScore
	}
	executor := r.getExecutor(exec)
	query := `
		UPDATE participations SET score = score + $1
		WHERE competition_id = $2 AND user_id = $3`
	result, err := executor.ExecContext(ctx, query, delta, competitionID, userID)
	if err != nil {
		return r.handleParticipationError(err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) UpdatePosition(ctx context.Context, exec SQLExecutor, competitionID, userID int, position *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE participations SET position = $1
		WHERE competition_id = $2 AND user_id = $3`
	result, err := executor.ExecContext(ctx, query, position, competitionID, userID)
	if err != nil {
		return r.handleParticipationError(err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE competition_id = $1`, competitionID,
	).Scan(&count)
	return count, err
}

func (r *postgresParticipationRepository) handleParticipationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "participations_competition_id_user_id_key" {
				return ErrParticipationConflict
			}
		case "23503":
			return ErrParticipationInvalidRefs
		}
	}
	return err
}
