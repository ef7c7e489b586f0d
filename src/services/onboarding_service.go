package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/models"
)

// Identity is the verified (userId, email) pair supplied by the upstream
// identity provider.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// OnboardingState is what the wizard renders: the invitation plus current
// progress, or a completed flag once accepted_at is set.
type OnboardingState struct {
	Invitation       *models.TenantInvitation   `json:"invitation"`
	Progress         *models.OnboardingProgress `json:"progress,omitempty"`
	AlreadyCompleted bool                       `json:"already_completed"`
}

// OnboardingService tracks the token-authenticated onboarding wizard.
// Authentication is possession of the invitation token, not a session.
type OnboardingService struct {
	db       *sql.DB
	identity IdentityDirectory
	notifier Notifier
	log      *zap.Logger
}

// NewOnboardingService creates a new onboarding service.
func NewOnboardingService(db *sql.DB, identity IdentityDirectory, notifier Notifier, log *zap.Logger) *OnboardingService {
	return &OnboardingService{
		db:       db,
		identity: identity,
		notifier: notifier,
		log:      log,
	}
}

// Get resolves the token to the invitation and its progress. Idempotently
// re-enterable: repeat visits before and after completion never error.
func (s *OnboardingService) Get(ctx context.Context, token string) (*OnboardingState, error) {
	invitation, err := getInvitationByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}

	if invitation.Accepted() {
		return &OnboardingState{Invitation: invitation, AlreadyCompleted: true}, nil
	}

	progress, err := s.loadOrCreateProgress(ctx, invitation.ID)
	if err != nil {
		return nil, err
	}
	return &OnboardingState{Invitation: invitation, Progress: progress}, nil
}

// Save persists answers for one step and optionally advances the wizard.
// Always legal pre-completion, including navigating backward; re-saving a
// step overwrites its answers and does not duplicate the completed-set entry.
func (s *OnboardingService) Save(ctx context.Context, token string, step models.StepID, stepData json.RawMessage, advanceTo *int) (*models.OnboardingProgress, error) {
	invitation, err := getInvitationByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}
	if invitation.Accepted() {
		return nil, fmt.Errorf("onboarding already completed: %w", ErrInvalidState)
	}

	if err := models.ValidateStepData(step, stepData); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	progress, err := s.loadOrCreateProgress(ctx, invitation.ID)
	if err != nil {
		return nil, err
	}

	progress.SetStepData(step, stepData)
	progress.MarkCompleted(step)
	if advanceTo != nil {
		if *advanceTo < 1 || *advanceTo > len(models.RequiredOnboardingSteps) {
			return nil, fmt.Errorf("step %d out of range: %w", *advanceTo, ErrValidation)
		}
		progress.CurrentStep = *advanceTo
	}
	progress.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE onboarding_progress
		SET current_step = $1, completed_steps = $2, data = $3, updated_at = $4
		WHERE invitation_id = $5
	`, progress.CurrentStep, progress.CompletedSteps, progress.Data,
		progress.UpdatedAt, invitation.ID)
	if err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	return progress, nil
}

// Complete finishes onboarding: verifies the caller's identity against the
// invitation email, checks every required step carries data, sets accepted_at
// and binds the verified user as the lease's tenant of record. Effectively
// single-shot: concurrent or repeated calls after the first succeed as a
// no-op returning the same completed state.
func (s *OnboardingService) Complete(ctx context.Context, token string, caller Identity) (*OnboardingState, error) {
	invitation, err := getInvitationByToken(ctx, s.db, token)
	if err != nil {
		return nil, err
	}

	// Email mismatch is Forbidden, not NotFound: the token was valid, the
	// caller is not its addressee.
	if !strings.EqualFold(invitation.TenantEmail, caller.Email) {
		return nil, fmt.Errorf("invitation addressed to another email: %w", ErrForbidden)
	}

	if invitation.Accepted() {
		return &OnboardingState{Invitation: invitation, AlreadyCompleted: true}, nil
	}

	progress, err := s.loadOrCreateProgress(ctx, invitation.ID)
	if err != nil {
		return nil, err
	}
	if missing := progress.MissingSteps(); len(missing) > 0 {
		return nil, fmt.Errorf("steps missing data %v: %w", missing, ErrIncompleteOnboarding)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE tenant_invitations SET accepted_at = $1
		WHERE id = $2 AND accepted_at IS NULL
	`, now, invitation.ID)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// A concurrent Complete won; report the same completed result.
		invitation.AcceptedAt = &now
		return &OnboardingState{Invitation: invitation, AlreadyCompleted: true}, nil
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE leases SET tenant_user_id = $1, updated_at = $2 WHERE id = $3
	`, caller.UserID, now, invitation.LeaseID); err != nil {
		return nil, fmt.Errorf("bind lease tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}

	if err := s.identity.GrantTenantRole(ctx, caller.UserID); err != nil {
		s.log.Error("failed to grant tenant role",
			zap.String("user_id", caller.UserID.String()), zap.Error(err))
	}
	s.notifier.Notify(ctx, "onboarding.completed", map[string]interface{}{
		"invitation_id": invitation.ID.String(),
		"lease_id":      invitation.LeaseID.String(),
	})

	invitation.AcceptedAt = &now
	return &OnboardingState{Invitation: invitation, Progress: progress, AlreadyCompleted: true}, nil
}

// loadOrCreateProgress fetches the progress row for an invitation, creating
// it at step 1 on first touch. The unique invitation_id constraint makes the
// create race-safe.
func (s *OnboardingService) loadOrCreateProgress(ctx context.Context, invitationID uuid.UUID) (*models.OnboardingProgress, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO onboarding_progress (
			id, invitation_id, current_step, completed_steps, data, created_at, updated_at
		) VALUES ($1, $2, 1, '{}', '{}', $3, $3)
		ON CONFLICT (invitation_id) DO NOTHING
	`, uuid.New(), invitationID, now)
	if err != nil {
		return nil, fmt.Errorf("init progress: %w", err)
	}

	p := &models.OnboardingProgress{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, invitation_id, current_step, completed_steps, data, created_at, updated_at
		FROM onboarding_progress WHERE invitation_id = $1
	`, invitationID).Scan(
		&p.ID, &p.InvitationID, &p.CurrentStep, &p.CompletedSteps, &p.Data,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}
