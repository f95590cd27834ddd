package services

import "errors"

// Shared errors used across services and the HTTP mapping layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors
	ErrValidationFailed             = errors.New("validation failed")
	ErrCompetitionTitleRequired     = errors.New("competition title is required")
	ErrCompetitionDatesRequired     = errors.New("competition start and end dates are required")
	ErrCompetitionInvalidDateRange  = errors.New("competition end date must not be before start date")
	ErrCompetitionInvalidCapacity   = errors.New("competition max participants must not be negative")
	ErrCompetitionInvalidKind       = errors.New("invalid competition kind provided")
	ErrCompetitionInvalidStatus     = errors.New("invalid competition status provided")
	ErrCompetitionInvalidTransition = errors.New("invalid competition status transition")
	ErrCompetitionAlreadyOver       = errors.New("competition end date is already in the past")
	ErrDailyPrizePoolForbidden      = errors.New("daily competitions cannot have a prize pool")
	ErrWeeklyAlreadyActive          = errors.New("another weekly competition is already active")
	ErrJoinNotOpen                  = errors.New("competition is not open for joining")
	ErrCompetitionFull              = errors.New("competition is full")
	ErrSessionNotCompletable        = errors.New("session is not in progress")
	ErrScoreNegative                = errors.New("session score must not be negative")
	ErrFinalizeNotDue               = errors.New("competition has not reached its end boundary yet")
	ErrInvalidPeriodKey             = errors.New("invalid period key")

	// Conflicts
	ErrCompetitionTitleConflict = errors.New("competition title already exists")

	// Invite errors
	ErrInviteExpired         = errors.New("invite has expired")
	ErrInviteAlreadyRedeemed = errors.New("invite has already been redeemed")
	ErrInviteSelfRedeem      = errors.New("cannot redeem your own invite")
	ErrInviteTokenGeneration = errors.New("failed to generate unique invite code")

	// Entity-specific not-found errors
	ErrUserNotFound          = errors.New("user not found")
	ErrCompetitionNotFound   = errors.New("competition not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrSessionNotFound       = errors.New("game session not found")
	ErrInviteNotFound        = errors.New("invite not found")

	// Authorization
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)
