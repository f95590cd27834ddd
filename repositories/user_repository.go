package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/wordarena/arena-backend/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserNicknameConflict = errors.New("nickname is already in use")
	ErrUserEmailConflict    = errors.New("email address is already in use")
)

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	// AddToTotalScore increments the live weekly counter from a completed
	// game session; deltas are never negative.
	AddToTotalScore(ctx context.Context, exec SQLExecutor, userID, delta int) error
	// ImproveBestPosition records a ranking position only when it beats
	// (or first sets) the stored one.
	ImproveBestPosition(ctx context.Context, exec SQLExecutor, userID, position int) error
	// ResetLiveScores zeroes total_score and clears best_position for the
	// given users. Only the finalization procedure may call this.
	ResetLiveScores(ctx context.Context, exec SQLExecutor, userIDs []int) (int, error)
	// ListWithPositiveScore returns ids of users whose live total_score is
	// positive; used by the integrity auditor to find players the weekly
	// aggregation silently missed.
	ListWithPositiveScore(ctx context.Context) ([]int, error)
	SetInvitedBy(ctx context.Context, userID, inviterUserID int) error
	Count(ctx context.Context) (int, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const userColumns = `
	id, nickname, email, total_score, best_position,
	referral_code, invited_by_user_id, created_at, last_played_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Nickname, &u.Email, &u.TotalScore, &u.BestPosition,
		&u.ReferralCode, &u.InvitedByUserID, &u.CreatedAt, &u.LastPlayedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	executor := r.getExecutor(nil)

	where := ""
	args := []interface{}{}
	if filter.Nickname != nil && *filter.Nickname != "" {
		where = " WHERE nickname ILIKE $1"
		args = append(args, "%"+*filter.Nickname+"%")
	}

	var total int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	query := fmt.Sprintf(`SELECT`+userColumns+` FROM users%s ORDER BY total_score DESC, id ASC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (r *postgresUserRepository) AddToTotalScore(ctx context.Context, exec SQLExecutor, userID, delta int) error {
	if delta < 0 {
		return fmt.Errorf("score delta must not be negative, got %d", delta)
	}
	executor := r.getExecutor(exec)
	query := `UPDATE users SET total_score = total_score + $1, last_played_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) ImproveBestPosition(ctx context.Context, exec SQLExecutor, userID, position int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE users SET best_position = $1
		WHERE id = $2 AND (best_position IS NULL OR best_position > $1)`
	// Zero rows affected just means the stored position is already better.
	_, err := executor.ExecContext(ctx, query, position, userID)
	return err
}

func (r *postgresUserRepository) ResetLiveScores(ctx context.Context, exec SQLExecutor, userIDs []int) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	executor := r.getExecutor(exec)
	query := `
		UPDATE users SET total_score = 0, best_position = NULL
		WHERE id = ANY($1) AND (total_score <> 0 OR best_position IS NOT NULL)`
	result, err := executor.ExecContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(affected), nil
}

func (r *postgresUserRepository) ListWithPositiveScore(ctx context.Context) ([]int, error) {
	executor := r.getExecutor(nil)
	rows, err := executor.QueryContext(ctx, `SELECT id FROM users WHERE total_score > 0 ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresUserRepository) SetInvitedBy(ctx context.Context, userID, inviterUserID int) error {
	executor := r.getExecutor(nil)
	query := `UPDATE users SET invited_by_user_id = $1 WHERE id = $2 AND invited_by_user_id IS NULL`
	result, err := executor.ExecContext(ctx, query, inviterUserID, userID)
	if err != nil {
		return r.handleUserError(err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) Count(ctx context.Context) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *postgresUserRepository) handleUserError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_nickname_key":
			return ErrUserNicknameConflict
		case "users_email_key":
			return ErrUserEmailConflict
		}
	}
	return err
}
