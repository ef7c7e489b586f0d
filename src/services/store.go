package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rentfold/tenancy/src/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so reads and writes can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

const unitColumns = `id, property_id, landlord_id, unit_number, monthly_rent, security_deposit,
	       currency, is_available, is_visible, created_at, updated_at`

func scanUnit(row *sql.Row) (*models.Unit, error) {
	u := &models.Unit{}
	err := row.Scan(
		&u.ID, &u.PropertyID, &u.LandlordID, &u.UnitNumber, &u.MonthlyRent,
		&u.SecurityDeposit, &u.Currency, &u.IsAvailable, &u.IsVisible,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unit: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func getUnit(ctx context.Context, q querier, id uuid.UUID) (*models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = $1`
	return scanUnit(q.QueryRowContext(ctx, query, id))
}

// getUnitForUpdate locks the unit row for the remainder of the transaction.
func getUnitForUpdate(ctx context.Context, q querier, id uuid.UUID) (*models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = $1 FOR UPDATE`
	return scanUnit(q.QueryRowContext(ctx, query, id))
}

const applicationColumns = `id, applicant_id, applicant_email, unit_id, status, data,
	       submitted_at, reviewed_at, decision_notes, created_at, updated_at`

func getApplication(ctx context.Context, q querier, id uuid.UUID) (*models.TenancyApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM tenancy_applications WHERE id = $1`
	a := &models.TenancyApplication{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ApplicantID, &a.ApplicantEmail, &a.UnitID, &a.Status, &a.Data,
		&a.SubmittedAt, &a.ReviewedAt, &a.DecisionNotes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("application: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

const leaseColumns = `id, tenant_user_id, unit_id, landlord_id, lease_start, lease_end,
	       monthly_rent, currency, rent_due_day, security_deposit, status,
	       created_at, updated_at`

func scanLease(row *sql.Row) (*models.Lease, error) {
	l := &models.Lease{}
	err := row.Scan(
		&l.ID, &l.TenantUserID, &l.UnitID, &l.LandlordID, &l.LeaseStart, &l.LeaseEnd,
		&l.MonthlyRent, &l.Currency, &l.RentDueDay, &l.SecurityDeposit, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lease: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func getLease(ctx context.Context, q querier, id uuid.UUID) (*models.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = $1`
	return scanLease(q.QueryRowContext(ctx, query, id))
}

const invitationColumns = `id, token, tenant_email, tenant_name, unit_id, lease_id,
	       accepted_at, created_at`

func getInvitationByToken(ctx context.Context, q querier, token string) (*models.TenantInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM tenant_invitations WHERE token = $1`
	inv := &models.TenantInvitation{}
	err := q.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.Token, &inv.TenantEmail, &inv.TenantName, &inv.UnitID,
		&inv.LeaseID, &inv.AcceptedAt, &inv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invitation: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

const paymentColumns = `id, lease_id, tenant_user_id, unit_id, type, amount, currency,
	       status, due_date, paid_at, notes, session_id, created_at, updated_at`

func scanPayment(row *sql.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.ID, &p.LeaseID, &p.TenantUserID, &p.UnitID, &p.Type, &p.Amount,
		&p.Currency, &p.Status, &p.DueDate, &p.PaidAt, &p.Notes, &p.SessionID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func getPayment(ctx context.Context, q querier, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(q.QueryRowContext(ctx, query, id))
}

const noticeColumns = `id, lease_id, initiated_by, move_out_date, reason, status,
	       cancellation_reason, inspection_date, inspection_notes,
	       deposit_status, deposit_notes, created_at, updated_at`

func getNotice(ctx context.Context, q querier, id uuid.UUID) (*models.OffboardingNotice, error) {
	query := `SELECT ` + noticeColumns + ` FROM offboarding_notices WHERE id = $1`
	n := &models.OffboardingNotice{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.LeaseID, &n.InitiatedBy, &n.MoveOutDate, &n.Reason, &n.Status,
		&n.CancellationReason, &n.InspectionDate, &n.InspectionNotes,
		&n.DepositStatus, &n.DepositNotes, &n.CreatedAt, &n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notice: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// countOtherActiveLeases counts non-terminated leases held by the tenant
// besides the given one.
func countOtherActiveLeases(ctx context.Context, q querier, tenantUserID, excludeLeaseID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM leases
		WHERE tenant_user_id = $1 AND id <> $2 AND status <> $3
	`
	var n int
	err := q.QueryRowContext(ctx, query, tenantUserID, excludeLeaseID, models.LeaseStatusTerminated).Scan(&n)
	return n, err
}
