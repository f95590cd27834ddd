package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wordarena/arena-backend/models"
)

var ErrAutomationLogNotFound = errors.New("automation log entry not found")

type AutomationLogRepository interface {
	Create(ctx context.Context, entry *models.AutomationLogEntry) error
	// MarkCompleted and MarkFailed fill executed_at (and error_message) on
	// a pending row exactly once; rows already terminal are left alone.
	MarkCompleted(ctx context.Context, id int, executedAt time.Time, affectedUsers int) error
	MarkFailed(ctx context.Context, id int, executedAt time.Time, errorMessage string) error
	List(ctx context.Context, limit, offset int) ([]models.AutomationLogEntry, error)
	CountPending(ctx context.Context) (int, error)
}

type postgresAutomationLogRepository struct {
	db *sql.DB
}

func NewPostgresAutomationLogRepository(db *sql.DB) AutomationLogRepository {
	return &postgresAutomationLogRepository{db: db}
}

func (r *postgresAutomationLogRepository) Create(ctx context.Context, e *models.AutomationLogEntry) error {
	query := `
		INSERT INTO automation_log (type, status, scheduled_time, affected_users, settings_snapshot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var snapshot interface{}
	if len(e.SettingsSnapshot) > 0 {
		snapshot = []byte(e.SettingsSnapshot)
	}
	return r.db.QueryRowContext(ctx, query,
		e.Type, e.Status, e.ScheduledTime.UTC(), e.AffectedUsers, snapshot,
	).Scan(&e.ID)
}

func (r *postgresAutomationLogRepository) MarkCompleted(ctx context.Context, id int, executedAt time.Time, affectedUsers int) error {
	query := `
		UPDATE automation_log
		SET status = $1, executed_at = $2, affected_users = $3
		WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query,
		models.AutomationCompleted, executedAt.UTC(), affectedUsers, id, models.AutomationPending,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrAutomationLogNotFound)
}

func (r *postgresAutomationLogRepository) MarkFailed(ctx context.Context, id int, executedAt time.Time, errorMessage string) error {
	query := `
		UPDATE automation_log
		SET status = $1, executed_at = $2, error_message = $3
		WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query,
		models.AutomationFailed, executedAt.UTC(), errorMessage, id, models.AutomationPending,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrAutomationLogNotFound)
}

func (r *postgresAutomationLogRepository) List(ctx context.Context, limit, offset int) ([]models.AutomationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, type, status, scheduled_time, executed_at, error_message, affected_users, settings_snapshot
		FROM automation_log
		ORDER BY scheduled_time DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.AutomationLogEntry, 0)
	for rows.Next() {
		var e models.AutomationLogEntry
		var snapshot []byte
		if scanErr := rows.Scan(&e.ID, &e.Type, &e.Status, &e.ScheduledTime, &e.ExecutedAt, &e.ErrorMessage, &e.AffectedUsers, &snapshot); scanErr != nil {
			return nil, scanErr
		}
		e.SettingsSnapshot = snapshot
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresAutomationLogRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM automation_log WHERE status = $1`, models.AutomationPending,
	).Scan(&count)
	return count, err
}
