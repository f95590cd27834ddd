package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wordarena/arena-backend/models"
)

var ErrRankingEntryNotFound = errors.New("ranking entry not found")

type RankingRepository interface {
	// UpsertBatch writes one row per user for the period using the
	// (period_key, user_id) uniqueness constraint as the conflict target.
	// Re-running with identical computed data converges to the same rows.
	UpsertBatch(ctx context.Context, exec SQLExecutor, entries []models.RankingEntry) error
	ListByPeriod(ctx context.Context, exec SQLExecutor, periodKey string) ([]models.RankingEntry, error)
	// FindDuplicatePairs reports (period_key, user_id) pairs with more
	// than one row. Should be impossible under the upsert discipline;
	// concurrent writers outside it, or constraint drift, can produce them.
	FindDuplicatePairs(ctx context.Context) ([]models.DuplicateRanking, error)
	ExistsForPeriodAndUser(ctx context.Context, periodKey string, userID int) (bool, error)
	DeleteByPeriod(ctx context.Context, exec SQLExecutor, periodKey string) error
	Count(ctx context.Context) (int, error)
}

type postgresRankingRepository struct {
	db *sql.DB
}

func NewPostgresRankingRepository(db *sql.DB) RankingRepository {
	return &postgresRankingRepository{db: db}
}

func (r *postgresRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRankingRepository) UpsertBatch(ctx context.Context, exec SQLExecutor, entries []models.RankingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO ranking_entries (period_key, user_id, score, position, prize_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_key, user_id) DO UPDATE SET
			score = EXCLUDED.score,
			position = EXCLUDED.position,
			prize_amount = EXCLUDED.prize_amount,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
		if _, err := executor.ExecContext(ctx, query,
			e.PeriodKey, e.UserID, e.Score, e.Position, e.PrizeAmount, e.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert ranking entry for user %d in period %s: %w", e.UserID, e.PeriodKey, err)
		}
	}
	return nil
}

func (r *postgresRankingRepository) ListByPeriod(ctx context.Context, exec SQLExecutor, periodKey string) ([]models.RankingEntry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, period_key, user_id, score, position, prize_amount, updated_at
		FROM ranking_entries
		WHERE period_key = $1
		ORDER BY position ASC, user_id ASC`

	rows, err := executor.QueryContext(ctx, query, periodKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.RankingEntry, 0)
	for rows.Next() {
		var e models.RankingEntry
		if scanErr := rows.Scan(&e.ID, &e.PeriodKey, &e.UserID, &e.Score, &e.Position, &e.PrizeAmount, &e.UpdatedAt); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRankingRepository) FindDuplicatePairs(ctx context.Context) ([]models.DuplicateRanking, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT period_key, user_id, COUNT(*) AS cnt
		FROM ranking_entries
		GROUP BY period_key, user_id
		HAVING COUNT(*) > 1
		ORDER BY period_key, user_id`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	duplicates := make([]models.DuplicateRanking, 0)
	for rows.Next() {
		var d models.DuplicateRanking
		if scanErr := rows.Scan(&d.PeriodKey, &d.UserID, &d.Count); scanErr != nil {
			return nil, scanErr
		}
		duplicates = append(duplicates, d)
	}
	return duplicates, rows.Err()
}

func (r *postgresRankingRepository) ExistsForPeriodAndUser(ctx context.Context, periodKey string, userID int) (bool, error) {
	executor := r.getExecutor(nil)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ranking_entries WHERE period_key = $1 AND user_id = $2)`,
		periodKey, userID,
	).Scan(&exists)
	return exists, err
}

func (r *postgresRankingRepository) DeleteByPeriod(ctx context.Context, exec SQLExecutor, periodKey string) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM ranking_entries WHERE period_key = $1`, periodKey)
	return err
}

func (r *postgresRankingRepository) Count(ctx context.Context) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM ranking_entries`).Scan(&count)
	return count, err
}
