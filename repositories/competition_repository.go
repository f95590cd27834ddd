package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wordarena/arena-backend/models"
)

var (
	ErrCompetitionNotFound      = errors.New("competition not found")
	ErrCompetitionTitleConflict = errors.New("competition title conflict")
	ErrCompetitionInUse         = errors.New("competition is in use (participations/sessions exist)")
)

type ListCompetitionsFilter struct {
	Kind     *models.CompetitionKind
	Status   *models.CompetitionStatus
	Statuses []models.CompetitionStatus
	Limit    int
	Offset   int
}

type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)
	Update(ctx context.Context, competition *models.Competition) error
	// UpdateStatusIf flips status only when the stored value still equals
	// expected, so two concurrent sweeps cannot double-apply a transition.
	// Returns false when the row was already past expected.
	UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, expected, next models.CompetitionStatus) (bool, error)
	Delete(ctx context.Context, id int) error
	// ListNonTerminal loads every competition whose stored status is still
	// scheduled or active: the working set of the reconciliation sweep.
	ListNonTerminal(ctx context.Context, exec SQLExecutor) ([]*models.Competition, error)
	// NextScheduled returns the not-yet-over scheduled competition of the
	// given kind with the earliest start_at, or ErrCompetitionNotFound.
	NextScheduled(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, now time.Time) (*models.Competition, error)
	// ListByKindAndStartRange returns competitions of a kind whose
	// start_at falls inside [from, to]; the aggregation input for a period.
	ListByKindAndStartRange(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, from, to time.Time) ([]*models.Competition, error)
	CountByKindAndStatus(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, status models.CompetitionStatus) (int, error)
	Count(ctx context.Context, status *models.CompetitionStatus) (int, error)
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const competitionColumns = `
	id, title, theme, kind, status, start_at, end_at,
	max_participants, prize_pool, created_at, updated_at`

func scanCompetition(row interface{ Scan(...interface{}) error }) (*models.Competition, error) {
	c := &models.Competition{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Theme, &c.Kind, &c.Status, &c.StartAt, &c.EndAt,
		&c.MaxParticipants, &c.PrizePool, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO competitions (title, theme, kind, status, start_at, end_at, max_participants, prize_pool)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		c.Title, c.Theme, c.Kind, c.Status, c.StartAt.UTC(), c.EndAt.UTC(),
		c.MaxParticipants, c.PrizePool,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	return r.handleCompetitionError(err)
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE id = $1`
	return scanCompetition(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argID)
		args = append(args, *filter.Kind)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argID)
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		argID++
	}

	query += " ORDER BY start_at DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	competitions := make([]models.Competition, 0)
	for rows.Next() {
		c, scanErr := scanCompetition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		competitions = append(competitions, *c)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE competitions SET
			title = $1, theme = $2, kind = $3, status = $4,
			start_at = $5, end_at = $6, max_participants = $7, prize_pool = $8,
			updated_at = NOW()
		WHERE id = $9`

	result, err := executor.ExecContext(ctx, query,
		c.Title, c.Theme, c.Kind, c.Status, c.StartAt.UTC(), c.EndAt.UTC(),
		c.MaxParticipants, c.PrizePool, c.ID,
	)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, expected, next models.CompetitionStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE competitions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, r.handleCompetitionError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresCompetitionRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `DELETE FROM competitions WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) ListNonTerminal(ctx context.Context, exec SQLExecutor) ([]*models.Competition, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + competitionColumns + `
		FROM competitions
		WHERE status IN ($1, $2)
		ORDER BY start_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, models.StatusScheduled, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitions for status sweep: %w", err)
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		c, scanErr := scanCompetition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan competition for status sweep: %w", scanErr)
		}
		competitions = append(competitions, c)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) NextScheduled(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, now time.Time) (*models.Competition, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + competitionColumns + `
		FROM competitions
		WHERE kind = $1 AND status = $2 AND end_at >= $3
		ORDER BY start_at ASC, id ASC
		LIMIT 1`
	return scanCompetition(executor.QueryRowContext(ctx, query, kind, models.StatusScheduled, now.UTC()))
}

func (r *postgresCompetitionRepository) ListByKindAndStartRange(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, from, to time.Time) ([]*models.Competition, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + competitionColumns + `
		FROM competitions
		WHERE kind = $1 AND start_at BETWEEN $2 AND $3
		ORDER BY start_at ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, kind, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		c, scanErr := scanCompetition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		competitions = append(competitions, c)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) CountByKindAndStatus(ctx context.Context, exec SQLExecutor, kind models.CompetitionKind, status models.CompetitionStatus) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM competitions WHERE kind = $1 AND status = $2`, kind, status,
	).Scan(&count)
	return count, err
}

func (r *postgresCompetitionRepository) Count(ctx context.Context, status *models.CompetitionStatus) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	var err error
	if status != nil {
		err = executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM competitions WHERE status = $1`, *status).Scan(&count)
	} else {
		err = executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM competitions`).Scan(&count)
	}
	return count, err
}

func (r *postgresCompetitionRepository) handleCompetitionError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "competitions_kind_title_key" {
				return ErrCompetitionTitleConflict
			}
		case "23503":
			// FK violations from participations/sessions pointing at
			// competitions mean the row is referenced and cannot go away.
			return ErrCompetitionInUse
		}
	}
	return err
}
