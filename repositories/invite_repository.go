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
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteCodeConflict  = errors.New("invite code conflict")
	ErrInviteInviterInvalid = errors.New("invite inviter reference invalid")
)

type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error
	GetByCode(ctx context.Context, code string) (*models.Invite, error)
	// MarkRedeemed fills redeemed_by exactly once; an already-redeemed
	// invite is reported as not found so redeeming stays idempotent-safe.
	MarkRedeemed(ctx context.Context, inviteID, userID int, redeemedAt time.Time) error
	CountByInviter(ctx context.Context, inviterUserID int) (sent int, joined int, err error)
}

type postgresInviteRepository struct {
	db *sql.DB
}

func NewPostgresInviteRepository(db *sql.DB) InviteRepository {
	return &postgresInviteRepository{db: db}
}

func (r *postgresInviteRepository) Create(ctx context.Context, inv *models.Invite) error {
	query := `
		INSERT INTO invites (inviter_user_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, inv.InviterUserID, inv.Code, inv.ExpiresAt.UTC()).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrInviteCodeConflict
			case "23503":
				return ErrInviteInviterInvalid
			}
		}
		return err
	}
	return nil
}

func (r *postgresInviteRepository) GetByCode(ctx context.Context, code string) (*models.Invite, error) {
	query := `
		SELECT id, inviter_user_id, code, expires_at, redeemed_by_user_id, redeemed_at, created_at
		FROM invites
		WHERE code = $1`

	inv := &models.Invite{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&inv.ID, &inv.InviterUserID, &inv.Code, &inv.ExpiresAt,
		&inv.RedeemedByUserID, &inv.RedeemedAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *postgresInviteRepository) MarkRedeemed(ctx context.Context, inviteID, userID int, redeemedAt time.Time) error {
	query := `
		UPDATE invites SET redeemed_by_user_id = $1, redeemed_at = $2
		WHERE id = $3 AND redeemed_by_user_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, userID, redeemedAt.UTC(), inviteID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrInviteNotFound)
}

func (r *postgresInviteRepository) CountByInviter(ctx context.Context, inviterUserID int) (int, int, error) {
	var sent, joined int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(redeemed_by_user_id)
		FROM invites
		WHERE inviter_user_id = $1`, inviterUserID,
	).Scan(&sent, &joined)
	return sent, joined, err
}
