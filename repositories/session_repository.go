package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/wordarena/arena-backend/models"
)

var (
	ErrSessionNotFound    = errors.New("game session not found")
	ErrSessionInvalidRefs = errors.New("session references unknown competition or user")
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.GameSession) error
	GetByID(ctx context.Context, id int) (*models.GameSession, error)
	// Complete records the final score of a session exactly once; a
	// session already completed is left untouched and reported as not found.
	Complete(ctx context.Context, exec SQLExecutor, id, score int, completedAt time.Time) error
	// ListOrphaned returns completed, scored sessions with no competition
	// linkage; they count toward nothing and the auditor flags them.
	ListOrphaned(ctx context.Context) ([]models.GameSession, error)
	CountCompleted(ctx context.Context) (int, error)
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const sessionColumns = `id, user_id, competition_id, score, status, completed_at, created_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.GameSession, error) {
	s := &models.GameSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.CompetitionID, &s.Score, &s.Status, &s.CompletedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresSessionRepository) Create(ctx context.Context, s *models.GameSession) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO game_sessions (user_id, competition_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := executor.QueryRowContext(ctx, query, s.UserID, s.CompetitionID, s.Status).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrSessionInvalidRefs
		}
		return err
	}
	return nil
}

func (r *postgresSessionRepository) GetByID(ctx context.Context, id int) (*models.GameSession, error) {
	executor := r.getExecutor(nil)
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id = $1`
	return scanSession(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresSessionRepository) Complete(ctx context.Context, exec SQLExecutor, id, score int, completedAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE game_sessions
		SET status = $1, score = $2, completed_at = $3
		WHERE id = $4 AND status = $5`
	result, err := executor.ExecContext(ctx, query,
		models.SessionCompleted, score, completedAt.UTC(), id, models.SessionInProgress,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) ListOrphaned(ctx context.Context) ([]models.GameSession, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE status = $1 AND score IS NOT NULL AND competition_id IS NULL
		ORDER BY completed_at DESC, id DESC`

	rows, err := executor.QueryContext(ctx, query, models.SessionCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.GameSession, 0)
	for rows.Next() {
		s, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *postgresSessionRepository) CountCompleted(ctx context.Context) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_sessions WHERE status = $1`, models.SessionCompleted,
	).Scan(&count)
	return count, err
}
