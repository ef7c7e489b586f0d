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

// DefaultLeaseTermMonths is the standard lease term provisioned on approval.
const DefaultLeaseTermMonths = 12

// ApplicationReviewService creates and decides tenancy applications. Approval
// provisions the lease, invitation, and move-in payment as one atomic unit.
type ApplicationReviewService struct {
	db       *sql.DB
	payments *PaymentService
	notifier Notifier
	log      *zap.Logger
}

// NewApplicationReviewService creates a new application review service.
func NewApplicationReviewService(db *sql.DB, payments *PaymentService, notifier Notifier, log *zap.Logger) *ApplicationReviewService {
	return &ApplicationReviewService{
		db:       db,
		payments: payments,
		notifier: notifier,
		log:      log,
	}
}

// SubmitApplicationRequest carries a prospective tenant's submission.
type SubmitApplicationRequest struct {
	ApplicantID    uuid.UUID
	ApplicantEmail string
	UnitID         uuid.UUID
	Data           models.ApplicationData
}

// Submit records a new pending application. One live application per
// applicant/unit pair, enforced by a partial unique index so concurrent
// submissions cannot slip past the check.
func (s *ApplicationReviewService) Submit(ctx context.Context, req SubmitApplicationRequest) (*models.TenancyApplication, error) {
	if err := req.Data.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	unit, err := getUnit(ctx, s.db, req.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.CanApply() {
		return nil, fmt.Errorf("unit %s is not open for applications: %w", unit.ID, ErrInvalidState)
	}

	data, err := models.MarshalJSONB(req.Data)
	if err != nil {
		return nil, fmt.Errorf("encode application data: %w", err)
	}

	now := time.Now()
	app := &models.TenancyApplication{
		ID:             uuid.New(),
		ApplicantID:    req.ApplicantID,
		ApplicantEmail: req.ApplicantEmail,
		UnitID:         req.UnitID,
		Status:         models.ApplicationStatusPending,
		Data:           data,
		SubmittedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenancy_applications (
			id, applicant_id, applicant_email, unit_id, status, data,
			submitted_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, app.ID, app.ApplicantID, app.ApplicantEmail, app.UnitID, app.Status,
		app.Data, app.SubmittedAt, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("applicant already has a pending application for unit %s: %w", req.UnitID, ErrConflict)
		}
		return nil, fmt.Errorf("insert application: %w", err)
	}

	s.notifier.Notify(ctx, "application.submitted", map[string]interface{}{
		"application_id": app.ID.String(),
		"unit_id":        app.UnitID.String(),
	})
	return app, nil
}

// Decision is a landlord's verdict on a pending application.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Decide applies a landlord decision to a pending application. Only the
// landlord who owns the applied-for unit may decide. Rejection is a
// single status write. Approval provisions the lease, marks the unit
// unavailable, issues the invitation, and creates the move-in payment inside
// one transaction; any failure rolls the whole transition back and the
// application stays pending. Deciding an already-decided application fails
// with ErrInvalidState rather than repeating silently.
func (s *ApplicationReviewService) Decide(ctx context.Context, applicationID, callerID uuid.UUID, decision Decision, notes *string) (*models.TenancyApplication, error) {
	var newStatus models.ApplicationStatus
	switch decision {
	case DecisionApproved:
		newStatus = models.ApplicationStatusApproved
	case DecisionRejected:
		newStatus = models.ApplicationStatusRejected
	default:
		return nil, fmt.Errorf("unknown decision %q: %w", decision, ErrValidation)
	}

	app, err := getApplication(ctx, s.db, applicationID)
	if err != nil {
		return nil, err
	}
	unit, err := getUnit(ctx, s.db, app.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.LandlordID != callerID {
		return nil, fmt.Errorf("application %s is not reviewable by caller: %w", app.ID, ErrForbidden)
	}
	if !app.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("application %s is %s: %w", app.ID, app.Status, ErrInvalidState)
	}

	if decision == DecisionRejected {
		return s.reject(ctx, app, notes)
	}
	return s.approve(ctx, app, notes)
}

func (s *ApplicationReviewService) reject(ctx context.Context, app *models.TenancyApplication, notes *string) (*models.TenancyApplication, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenancy_applications
		SET status = $1, reviewed_at = $2, decision_notes = $3, updated_at = $2
		WHERE id = $4 AND status = $5
	`, models.ApplicationStatusRejected, now, notes, app.ID, models.ApplicationStatusPending)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("application %s already decided: %w", app.ID, ErrInvalidState)
	}

	app.Status = models.ApplicationStatusRejected
	app.ReviewedAt = &now
	app.DecisionNotes = notes
	app.UpdatedAt = now

	s.notifier.Notify(ctx, "application.rejected", map[string]interface{}{
		"application_id": app.ID.String(),
	})
	return app, nil
}

func (s *ApplicationReviewService) approve(ctx context.Context, app *models.TenancyApplication, notes *string) (*models.TenancyApplication, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval tx: %w", err)
	}
	defer tx.Rollback()

	unit, err := getUnitForUpdate(ctx, tx, app.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.IsAvailable {
		return nil, fmt.Errorf("unit %s is no longer available: %w", unit.ID, ErrInvalidState)
	}

	// CAS on status is the decision race's serialization point: of two
	// near-simultaneous approvals exactly one flips pending -> approved.
	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE tenancy_applications
		SET status = $1, reviewed_at = $2, decision_notes = $3, updated_at = $2
		WHERE id = $4 AND status = $5
	`, models.ApplicationStatusApproved, now, notes, app.ID, models.ApplicationStatusPending)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("application %s already decided: %w", app.ID, ErrInvalidState)
	}

	lease := &models.Lease{
		ID:              uuid.New(),
		TenantUserID:    app.ApplicantID,
		UnitID:          unit.ID,
		LandlordID:      unit.LandlordID,
		LeaseStart:      now,
		LeaseEnd:        now.AddDate(0, DefaultLeaseTermMonths, 0),
		MonthlyRent:     unit.MonthlyRent,
		Currency:        unit.Currency,
		RentDueDay:      now.Day(),
		SecurityDeposit: unit.SecurityDeposit,
		Status:          models.LeaseStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO leases (
			id, tenant_user_id, unit_id, landlord_id, lease_start, lease_end,
			monthly_rent, currency, rent_due_day, security_deposit, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, lease.ID, lease.TenantUserID, lease.UnitID, lease.LandlordID,
		lease.LeaseStart, lease.LeaseEnd, lease.MonthlyRent, lease.Currency,
		lease.RentDueDay, lease.SecurityDeposit, lease.Status,
		lease.CreatedAt, lease.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE units SET is_available = FALSE, updated_at = $1 WHERE id = $2
	`, now, unit.ID); err != nil {
		return nil, fmt.Errorf("mark unit unavailable: %w", err)
	}

	token, err := models.NewInvitationToken()
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}
	tenantName := ""
	var appData models.ApplicationData
	if err := app.Data.UnmarshalInto(&appData); err == nil && appData.Personal != nil {
		tenantName = appData.Personal.FullName
	}
	invitation := &models.TenantInvitation{
		ID:          uuid.New(),
		Token:       token,
		TenantEmail: app.ApplicantEmail,
		TenantName:  tenantName,
		UnitID:      unit.ID,
		LeaseID:     lease.ID,
		CreatedAt:   now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenant_invitations (
			id, token, tenant_email, tenant_name, unit_id, lease_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, invitation.ID, invitation.Token, invitation.TenantEmail,
		invitation.TenantName, invitation.UnitID, invitation.LeaseID, invitation.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}

	if _, err = s.payments.CreateMoveInPayment(ctx, tx, lease); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}

	app.Status = models.ApplicationStatusApproved
	app.ReviewedAt = &now
	app.DecisionNotes = notes
	app.UpdatedAt = now

	s.notifier.Notify(ctx, "application.approved", map[string]interface{}{
		"application_id": app.ID.String(),
		"lease_id":       lease.ID.String(),
		"unit_id":        unit.ID.String(),
	})
	return app, nil
}

// Withdraw lets the applicant retract a still-pending application.
func (s *ApplicationReviewService) Withdraw(ctx context.Context, applicationID, applicantID uuid.UUID) (*models.TenancyApplication, error) {
	app, err := getApplication(ctx, s.db, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != applicantID {
		return nil, fmt.Errorf("application %s is not owned by caller: %w", applicationID, ErrForbidden)
	}
	if !app.CanTransitionTo(models.ApplicationStatusWithdrawn) {
		return nil, fmt.Errorf("application %s is %s: %w", app.ID, app.Status, ErrInvalidState)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenancy_applications SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, models.ApplicationStatusWithdrawn, now, app.ID, models.ApplicationStatusPending)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("application %s already decided: %w", app.ID, ErrInvalidState)
	}

	app.Status = models.ApplicationStatusWithdrawn
	app.UpdatedAt = now
	return app, nil
}

// Get returns an application by id.
func (s *ApplicationReviewService) Get(ctx context.Context, applicationID uuid.UUID) (*models.TenancyApplication, error) {
	return getApplication(ctx, s.db, applicationID)
}
