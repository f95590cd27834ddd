package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
)

const (
	inviteCodeBytes       = 8
	inviteTTL             = 7 * 24 * time.Hour
	inviteCodeAttempts    = 3
	referralStatsCacheTTL = 5 * time.Minute
)

type InviteService interface {
	CreateInvite(ctx context.Context, inviterUserID int) (*models.Invite, error)
	// RedeemInvite links the redeeming user to the inviter. An invite
	// redeems at most once; expiry and self-redemption are rejected.
	RedeemInvite(ctx context.Context, code string, userID int) (*models.Invite, error)
	// GetReferralStats serves counts through a short-lived cache; a stale
	// read within the TTL is acceptable for a stats panel.
	GetReferralStats(ctx context.Context, userID int) (*models.ReferralStats, error)
}

type cachedStats struct {
	stats     models.ReferralStats
	expiresAt time.Time
}

type inviteService struct {
	inviteRepo repositories.InviteRepository
	userRepo   repositories.UserRepository
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache map[int]cachedStats
}

func NewInviteService(inviteRepo repositories.InviteRepository, userRepo repositories.UserRepository, logger *slog.Logger) InviteService {
	return &inviteService{
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		logger:     logger,
		now:        time.Now,
		cache:      make(map[int]cachedStats),
	}
}

func (s *inviteService) CreateInvite(ctx context.Context, inviterUserID int) (*models.Invite, error) {
	if _, err := s.userRepo.GetByID(ctx, inviterUserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load inviter %d: %w", inviterUserID, err)
	}

	expiresAt := s.now().Add(inviteTTL)
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}

		invite := &models.Invite{
			InviterUserID: inviterUserID,
			Code:          code,
			ExpiresAt:     expiresAt,
		}
		err = s.inviteRepo.Create(ctx, invite)
		if err == nil {
			s.invalidateStats(inviterUserID)
			return invite, nil
		}
		if errors.Is(err, repositories.ErrInviteCodeConflict) {
			continue
		}
		if errors.Is(err, repositories.ErrInviteInviterInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}
	return nil, ErrInviteTokenGeneration
}

func (s *inviteService) RedeemInvite(ctx context.Context, code string, userID int) (*models.Invite, error) {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	if invite.RedeemedByUserID != nil {
		return nil, ErrInviteAlreadyRedeemed
	}
	if invite.InviterUserID == userID {
		return nil, ErrInviteSelfRedeem
	}
	now := s.now()
	if now.After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	// The conditional update is the real gate; the checks above only
	// produce friendlier errors.
	if err := s.inviteRepo.MarkRedeemed(ctx, invite.ID, userID, now); err != nil {
		if errors.Is(err, repositories.ErrInviteNotFound) {
			return nil, ErrInviteAlreadyRedeemed
		}
		return nil, fmt.Errorf("failed to redeem invite %d: %w", invite.ID, err)
	}

	// First successful redemption wins the invited_by slot; later invites
	// redeemed by the same user leave it untouched.
	if err := s.userRepo.SetInvitedBy(ctx, userID, invite.InviterUserID); err != nil {
		s.logger.WarnContext(ctx, "failed to record inviter on user profile",
			slog.Int("user_id", userID),
			slog.Int("inviter_user_id", invite.InviterUserID),
			slog.Any("error", err))
	}

	invite.RedeemedByUserID = &userID
	invite.RedeemedAt = &now
	s.invalidateStats(invite.InviterUserID)

	s.logger.InfoContext(ctx, "invite redeemed",
		slog.Int("invite_id", invite.ID),
		slog.Int("inviter_user_id", invite.InviterUserID),
		slog.Int("redeemed_by", userID))

	return invite, nil
}

func (s *inviteService) GetReferralStats(ctx context.Context, userID int) (*models.ReferralStats, error) {
	now := s.now()

	s.mu.Lock()
	if cached, ok := s.cache[userID]; ok && now.Before(cached.expiresAt) {
		stats := cached.stats
		s.mu.Unlock()
		return &stats, nil
	}
	s.mu.Unlock()

	sent, joined, err := s.inviteRepo.CountByInviter(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count invites for user %d: %w", userID, err)
	}

	stats := models.ReferralStats{
		UserID:        userID,
		InvitesSent:   sent,
		InvitesJoined: joined,
	}

	s.mu.Lock()
	s.cache[userID] = cachedStats{stats: stats, expiresAt: now.Add(referralStatsCacheTTL)}
	s.mu.Unlock()

	return &stats, nil
}

func (s *inviteService) invalidateStats(userID int) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
