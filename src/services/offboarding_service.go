package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/models"
)

// DefaultNoticePeriodDays is the fixed interval between notice and the
// earliest default move-out date.
const DefaultNoticePeriodDays = 60

// OffboardingService runs the notice -> inspection -> completion state
// machine that unwinds a lease, including the administrative fast path.
type OffboardingService struct {
	db       *sql.DB
	identity IdentityDirectory
	notifier Notifier
	log      *zap.Logger
}

// NewOffboardingService creates a new offboarding service.
func NewOffboardingService(db *sql.DB, identity IdentityDirectory, notifier Notifier, log *zap.Logger) *OffboardingService {
	return &OffboardingService{
		db:       db,
		identity: identity,
		notifier: notifier,
		log:      log,
	}
}

// GiveNoticeRequest opens a move-out notice against a lease.
type GiveNoticeRequest struct {
	LeaseID     uuid.UUID
	InitiatedBy models.InitiatorRole
	MoveOutDate *time.Time
	Reason      *string
}

// GiveNotice opens an offboarding notice for an active lease. At most one
// non-terminal notice per lease: the partial unique index on lease_id rejects
// the loser of a concurrent race with ErrConflict.
func (s *OffboardingService) GiveNotice(ctx context.Context, req GiveNoticeRequest) (*models.OffboardingNotice, error) {
	if req.InitiatedBy != models.InitiatorTenant && req.InitiatedBy != models.InitiatorLandlord {
		return nil, fmt.Errorf("unknown initiator %q: %w", req.InitiatedBy, ErrValidation)
	}

	lease, err := getLease(ctx, s.db, req.LeaseID)
	if err != nil {
		return nil, err
	}
	if lease.Status != models.LeaseStatusActive {
		return nil, fmt.Errorf("lease %s is %s: %w", lease.ID, lease.Status, ErrInvalidState)
	}

	now := time.Now()
	moveOut := now.AddDate(0, 0, DefaultNoticePeriodDays)
	if req.MoveOutDate != nil {
		moveOut = *req.MoveOutDate
	}

	notice := &models.OffboardingNotice{
		ID:          uuid.New(),
		LeaseID:     lease.ID,
		InitiatedBy: req.InitiatedBy,
		MoveOutDate: moveOut,
		Reason:      req.Reason,
		Status:      models.NoticeStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin notice tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO offboarding_notices (
			id, lease_id, initiated_by, move_out_date, reason, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, notice.ID, notice.LeaseID, notice.InitiatedBy, notice.MoveOutDate,
		notice.Reason, notice.Status, notice.CreatedAt, notice.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("lease %s already has an open notice: %w", lease.ID, ErrConflict)
		}
		return nil, fmt.Errorf("insert notice: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE leases SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.LeaseStatusNoticeGiven, now, lease.ID, models.LeaseStatusActive)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("lease %s changed state concurrently: %w", lease.ID, ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit notice: %w", err)
	}

	s.notifier.Notify(ctx, "offboarding.notice_given", map[string]interface{}{
		"lease_id":  lease.ID.String(),
		"notice_id": notice.ID.String(),
	})
	return notice, nil
}

// Cancel withdraws a still-active, tenant-initiated notice and reverts the
// lease to active. Only the lease's tenant of record may cancel;
// landlord-initiated notices are not cancellable through this path.
func (s *OffboardingService) Cancel(ctx context.Context, noticeID, callerID uuid.UUID, cancellationReason *string) error {
	notice, err := getNotice(ctx, s.db, noticeID)
	if err != nil {
		return err
	}
	lease, err := getLease(ctx, s.db, notice.LeaseID)
	if err != nil {
		return err
	}
	if lease.TenantUserID != callerID {
		return fmt.Errorf("notice %s is not cancellable by caller: %w", notice.ID, ErrForbidden)
	}
	if notice.Status != models.NoticeStatusActive {
		return fmt.Errorf("notice %s is %s: %w", notice.ID, notice.Status, ErrInvalidState)
	}
	if !notice.CanCancel() {
		return fmt.Errorf("landlord-initiated notices cannot be cancelled: %w", ErrForbidden)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE offboarding_notices
		SET status = $1, cancellation_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, models.NoticeStatusCancelled, cancellationReason, now, notice.ID, models.NoticeStatusActive)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("notice %s changed state concurrently: %w", notice.ID, ErrInvalidState)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE leases SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.LeaseStatusActive, now, notice.LeaseID, models.LeaseStatusNoticeGiven); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}

	s.notifier.Notify(ctx, "offboarding.notice_cancelled", map[string]interface{}{
		"notice_id": notice.ID.String(),
	})
	return nil
}

// ScheduleInspection records the move-out inspection appointment. The
// inspection is the landlord's act; nobody else may schedule it.
func (s *OffboardingService) ScheduleInspection(ctx context.Context, noticeID, callerID uuid.UUID, inspectionDate time.Time, inspectionNotes *string) error {
	notice, err := getNotice(ctx, s.db, noticeID)
	if err != nil {
		return err
	}
	lease, err := getLease(ctx, s.db, notice.LeaseID)
	if err != nil {
		return err
	}
	if lease.LandlordID != callerID {
		return fmt.Errorf("notice %s inspection is the landlord's to schedule: %w", notice.ID, ErrForbidden)
	}
	if !notice.CanTransitionTo(models.NoticeStatusInspectionScheduled) {
		return fmt.Errorf("notice %s is %s: %w", notice.ID, notice.Status, ErrInvalidState)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE offboarding_notices
		SET status = $1, inspection_date = $2, inspection_notes = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, models.NoticeStatusInspectionScheduled, inspectionDate, inspectionNotes,
		time.Now(), notice.ID, models.NoticeStatusActive)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("notice %s changed state concurrently: %w", notice.ID, ErrInvalidState)
	}
	return nil
}

// CompleteOffboardingRequest records the inspection outcome and deposit
// disposition at move-out.
type CompleteOffboardingRequest struct {
	InspectionDate  *time.Time
	InspectionNotes *string
	DepositStatus   models.DepositStatus
	DepositNotes    *string
}

// Complete finishes the move-out: notice completed, lease terminated, unit
// made available again (and hidden pending relisting), tenant role revoked if
// no other active lease remains. Only the lease's landlord may complete.
// Irreversible.
func (s *OffboardingService) Complete(ctx context.Context, noticeID, callerID uuid.UUID, req CompleteOffboardingRequest) error {
	if !models.ValidDepositStatus(req.DepositStatus) {
		return fmt.Errorf("unknown deposit status %q: %w", req.DepositStatus, ErrValidation)
	}

	notice, err := getNotice(ctx, s.db, noticeID)
	if err != nil {
		return err
	}
	lease, err := getLease(ctx, s.db, notice.LeaseID)
	if err != nil {
		return err
	}
	if lease.LandlordID != callerID {
		return fmt.Errorf("notice %s is the landlord's to complete: %w", notice.ID, ErrForbidden)
	}
	if !notice.CanTransitionTo(models.NoticeStatusCompleted) {
		return fmt.Errorf("notice %s is %s: %w", notice.ID, notice.Status, ErrInvalidState)
	}

	if err := s.finalize(ctx, lease, func(tx *sql.Tx, now time.Time) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE offboarding_notices
			SET status = $1, inspection_date = COALESCE($2, inspection_date),
			    inspection_notes = COALESCE($3, inspection_notes),
			    deposit_status = $4, deposit_notes = $5, updated_at = $6
			WHERE id = $7 AND status IN ($8, $9)
		`, models.NoticeStatusCompleted, req.InspectionDate, req.InspectionNotes,
			req.DepositStatus, req.DepositNotes, now, notice.ID,
			models.NoticeStatusActive, models.NoticeStatusInspectionScheduled)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("notice %s changed state concurrently: %w", notice.ID, ErrInvalidState)
		}
		return nil
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, "offboarding.completed", map[string]interface{}{
		"notice_id": notice.ID.String(),
		"lease_id":  lease.ID.String(),
	})
	return nil
}

// FastTrack is the administrative override: terminates the lease without a
// prior notice or inspection. Authorization is the caller's concern; the
// state machine still refuses already-terminated leases. The deposit
// disposition defaults to pending so the unresolved deposit stays visible.
func (s *OffboardingService) FastTrack(ctx context.Context, leaseID uuid.UUID) error {
	lease, err := getLease(ctx, s.db, leaseID)
	if err != nil {
		return err
	}
	if lease.Status == models.LeaseStatusTerminated {
		return fmt.Errorf("lease %s already terminated: %w", lease.ID, ErrInvalidState)
	}

	if err := s.finalize(ctx, lease, func(tx *sql.Tx, now time.Time) error {
		// Close any open notice, or record a synthetic completed one so the
		// move-out leaves an audit trail either way.
		res, err := tx.ExecContext(ctx, `
			UPDATE offboarding_notices
			SET status = $1, deposit_status = $2, updated_at = $3
			WHERE lease_id = $4 AND status IN ($5, $6)
		`, models.NoticeStatusCompleted, models.DepositStatusPending, now,
			lease.ID, models.NoticeStatusActive, models.NoticeStatusInspectionScheduled)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			deposit := models.DepositStatusPending
			_, err = tx.ExecContext(ctx, `
				INSERT INTO offboarding_notices (
					id, lease_id, initiated_by, move_out_date, status,
					deposit_status, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			`, uuid.New(), lease.ID, models.InitiatorLandlord, now,
				models.NoticeStatusCompleted, deposit, now)
			if err != nil {
				return fmt.Errorf("insert fast-track notice: %w", err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, "offboarding.fast_tracked", map[string]interface{}{
		"lease_id": lease.ID.String(),
	})
	return nil
}

// finalize applies the shared terminal side effects of a move-out in one
// transaction: the caller's notice mutation, lease -> terminated, unit made
// available and hidden. Role revocation runs after commit.
func (s *OffboardingService) finalize(ctx context.Context, lease *models.Lease, mutateNotice func(tx *sql.Tx, now time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offboarding tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if err := mutateNotice(tx, now); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE leases SET status = $1, updated_at = $2
		WHERE id = $3 AND status <> $1
	`, models.LeaseStatusTerminated, now, lease.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("lease %s already terminated: %w", lease.ID, ErrInvalidState)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE units SET is_available = TRUE, is_visible = FALSE, updated_at = $1
		WHERE id = $2
	`, now, lease.UnitID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offboarding: %w", err)
	}

	others, err := countOtherActiveLeases(ctx, s.db, lease.TenantUserID, lease.ID)
	if err != nil {
		s.log.Error("failed to count tenant leases",
			zap.String("tenant_user_id", lease.TenantUserID.String()), zap.Error(err))
		return nil
	}
	if others == 0 {
		if err := s.identity.RevokeTenantRole(ctx, lease.TenantUserID); err != nil {
			s.log.Error("failed to revoke tenant role",
				zap.String("tenant_user_id", lease.TenantUserID.String()), zap.Error(err))
		}
	}
	return nil
}

// GetNotice returns a notice by id.
func (s *OffboardingService) GetNotice(ctx context.Context, noticeID uuid.UUID) (*models.OffboardingNotice, error) {
	return getNotice(ctx, s.db, noticeID)
}

// GetLease returns a lease by id.
func (s *OffboardingService) GetLease(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	return getLease(ctx, s.db, leaseID)
}
