package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/models"
)

func newReviewServiceWithMock(t *testing.T) (*ApplicationReviewService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	payments := NewPaymentService(db, &stubProcessor{}, log)
	return NewApplicationReviewService(db, payments, NewLogNotifier(log), log), mock
}

func validApplicationData() models.ApplicationData {
	return models.ApplicationData{
		Personal:         &models.PersonalSection{FullName: "Ada Park", Phone: "555-0100"},
		Employment:       &models.EmploymentSection{Employer: "Northwind"},
		EmergencyContact: &models.EmergencyContactSection{Name: "Lee Park", Phone: "555-0101"},
	}
}

func unitRow(id, landlordID uuid.UUID, available, visible bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "property_id", "landlord_id", "unit_number", "monthly_rent", "security_deposit",
		"currency", "is_available", "is_visible", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), landlordID, "4B", "2500.00", "1800.00", "USD", available, visible, now, now)
}

func applicationRow(id, applicantID, unitID uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now()
	data := `{"personal":{"full_name":"Ada Park","phone":"555-0100"}}`
	return sqlmock.NewRows([]string{
		"id", "applicant_id", "applicant_email", "unit_id", "status", "data",
		"submitted_at", "reviewed_at", "decision_notes", "created_at", "updated_at",
	}).AddRow(id, applicantID, "ada@example.com", unitID, status, data, now, nil, nil, now, now)
}

func TestSubmitRejectsIncompleteData(t *testing.T) {
	svc, _ := newReviewServiceWithMock(t)

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		ApplicantID:    uuid.New(),
		ApplicantEmail: "ada@example.com",
		UnitID:         uuid.New(),
		Data:           models.ApplicationData{Personal: &models.PersonalSection{FullName: "Ada Park", Phone: "555-0100"}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Submit() error = %v, want ErrValidation", err)
	}
}

func TestSubmitRejectsUnlistedUnit(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	unitID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, uuid.New(), true, false))

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		ApplicantID:    uuid.New(),
		ApplicantEmail: "ada@example.com",
		UnitID:         unitID,
		Data:           validApplicationData(),
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Submit() error = %v, want ErrInvalidState", err)
	}
}

func TestSubmitDuplicatePendingApplication(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	unitID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, uuid.New(), true, true))
	mock.ExpectExec("INSERT INTO tenancy_applications").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{
		ApplicantID:    uuid.New(),
		ApplicantEmail: "ada@example.com",
		UnitID:         unitID,
		Data:           validApplicationData(),
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Submit() error = %v, want ErrConflict", err)
	}
}

func TestDecideUnknownDecision(t *testing.T) {
	svc, _ := newReviewServiceWithMock(t)

	_, err := svc.Decide(context.Background(), uuid.New(), uuid.New(), Decision("maybe"), nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Decide() error = %v, want ErrValidation", err)
	}
}

func TestDecideAlreadyDecided(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	unitID := uuid.New()
	landlordID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, uuid.New(), unitID, "rejected"))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, true, true))

	_, err := svc.Decide(context.Background(), appID, landlordID, DecisionApproved, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decide() error = %v, want ErrInvalidState", err)
	}
}

func TestDecideRequiresUnitOwner(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	unitID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, uuid.New(), unitID, "pending"))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, uuid.New(), true, true))

	_, err := svc.Decide(context.Background(), appID, uuid.New(), DecisionApproved, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Decide() error = %v, want ErrForbidden", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApproveProvisionsLeaseAtomically(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	applicantID := uuid.New()
	unitID := uuid.New()
	landlordID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, applicantID, unitID, "pending"))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, true, true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id (.+) FOR UPDATE").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, true, true))
	mock.ExpectExec("UPDATE tenancy_applications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The lease carries the unit's own deposit, not a rent-derived one.
	mock.ExpectExec("INSERT INTO leases").
		WithArgs(sqlmock.AnyArg(), applicantID, unitID, landlordID,
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			decimal.RequireFromString("2500.00"), "USD", sqlmock.AnyArg(),
			decimal.RequireFromString("1800.00"), models.LeaseStatusActive,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE units SET is_available").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tenant_invitations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	app, err := svc.Decide(context.Background(), appID, landlordID, DecisionApproved, nil)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if app.Status != models.ApplicationStatusApproved {
		t.Errorf("status = %s, want approved", app.Status)
	}
	if app.ReviewedAt == nil {
		t.Errorf("ReviewedAt not set on approval")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApproveRollsBackWhenUnitTaken(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	unitID := uuid.New()
	landlordID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, uuid.New(), unitID, "pending"))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, true, true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id (.+) FOR UPDATE").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, false, true))
	mock.ExpectRollback()

	_, err := svc.Decide(context.Background(), appID, landlordID, DecisionApproved, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decide() error = %v, want ErrInvalidState", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRejectLosesDecisionRace(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	unitID := uuid.New()
	landlordID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, uuid.New(), unitID, "pending"))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(unitRow(unitID, landlordID, true, true))
	mock.ExpectExec("UPDATE tenancy_applications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.Decide(context.Background(), appID, landlordID, DecisionRejected, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decide() error = %v, want ErrInvalidState", err)
	}
}

func TestWithdrawRequiresOwnership(t *testing.T) {
	svc, mock := newReviewServiceWithMock(t)

	appID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(applicationRow(appID, uuid.New(), uuid.New(), "pending"))

	_, err := svc.Withdraw(context.Background(), appID, uuid.New())
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Withdraw() error = %v, want ErrForbidden", err)
	}
}
