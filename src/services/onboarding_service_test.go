package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newOnboardingServiceWithMock(t *testing.T) (*OnboardingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	return NewOnboardingService(db, NewLogIdentityDirectory(log), NewLogNotifier(log), log), mock
}

func invitationRow(id, leaseID uuid.UUID, email string, acceptedAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "token", "tenant_email", "tenant_name", "unit_id", "lease_id",
		"accepted_at", "created_at",
	}).AddRow(id, "tok_abc", email, "Ada Park", uuid.New(), leaseID, acceptedAt, time.Now())
}

func progressRow(invitationID uuid.UUID, completed string, data string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "invitation_id", "current_step", "completed_steps", "data",
		"created_at", "updated_at",
	}).AddRow(uuid.New(), invitationID, 1, completed, data, now, now)
}

func allStepsData() string {
	payload := map[string]json.RawMessage{
		"personal":          json.RawMessage(`{"full_name":"Ada Park","phone":"555-0100"}`),
		"employment":        json.RawMessage(`{"employer":"Northwind"}`),
		"proof_of_address":  json.RawMessage(`{"document_url":"https://files.example/a"}`),
		"emergency_contact": json.RawMessage(`{"name":"Lee Park","phone":"555-0101"}`),
		"photo_id":          json.RawMessage(`{"document_url":"https://files.example/b"}`),
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestGetUnknownToken(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Get(context.Background(), "tok_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGetAcceptedInvitationReportsCompleted(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	accepted := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "ada@example.com", &accepted))

	state, err := svc.Get(context.Background(), "tok_abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !state.AlreadyCompleted {
		t.Errorf("AlreadyCompleted = false, want true")
	}
	if state.Progress != nil {
		t.Errorf("Progress should not load for an accepted invitation")
	}
}

func TestSaveRejectsAfterCompletion(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	accepted := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "ada@example.com", &accepted))

	_, err := svc.Save(context.Background(), "tok_abc", "personal",
		json.RawMessage(`{"full_name":"Ada Park","phone":"555-0100"}`), nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Save() error = %v, want ErrInvalidState", err)
	}
}

func TestSaveRejectsMalformedStep(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "ada@example.com", nil))

	_, err := svc.Save(context.Background(), "tok_abc", "personal",
		json.RawMessage(`{"full_name":""}`), nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Save() error = %v, want ErrValidation", err)
	}
}

func TestSaveRejectsOutOfRangeAdvance(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	invitationID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(invitationID, uuid.New(), "ada@example.com", nil))
	mock.ExpectExec("INSERT INTO onboarding_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM onboarding_progress WHERE invitation_id").
		WithArgs(invitationID).
		WillReturnRows(progressRow(invitationID, "{}", "{}"))

	advance := 9
	_, err := svc.Save(context.Background(), "tok_abc", "personal",
		json.RawMessage(`{"full_name":"Ada Park","phone":"555-0100"}`), &advance)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Save() error = %v, want ErrValidation", err)
	}
}

func TestCompleteRejectsWrongEmailBeforeAcceptedCheck(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	// Even an already-accepted invitation refuses the wrong addressee.
	accepted := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "ada@example.com", &accepted))

	_, err := svc.Complete(context.Background(), "tok_abc", Identity{
		UserID: uuid.New(),
		Email:  "intruder@example.com",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Complete() error = %v, want ErrForbidden", err)
	}
}

func TestCompleteEmailMatchIsCaseInsensitive(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	accepted := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(uuid.New(), uuid.New(), "ada@example.com", &accepted))

	state, err := svc.Complete(context.Background(), "tok_abc", Identity{
		UserID: uuid.New(),
		Email:  "Ada@Example.COM",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !state.AlreadyCompleted {
		t.Errorf("AlreadyCompleted = false, want true")
	}
}

func TestCompleteRejectsMissingSteps(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	invitationID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(invitationID, uuid.New(), "ada@example.com", nil))
	mock.ExpectExec("INSERT INTO onboarding_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM onboarding_progress WHERE invitation_id").
		WithArgs(invitationID).
		WillReturnRows(progressRow(invitationID, "{personal}",
			`{"personal":{"full_name":"Ada Park","phone":"555-0100"}}`))

	_, err := svc.Complete(context.Background(), "tok_abc", Identity{
		UserID: uuid.New(),
		Email:  "ada@example.com",
	})
	if !errors.Is(err, ErrIncompleteOnboarding) {
		t.Errorf("Complete() error = %v, want ErrIncompleteOnboarding", err)
	}
}

func TestCompleteBindsLeaseTenant(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	invitationID := uuid.New()
	leaseID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(invitationID, leaseID, "ada@example.com", nil))
	mock.ExpectExec("INSERT INTO onboarding_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM onboarding_progress WHERE invitation_id").
		WithArgs(invitationID).
		WillReturnRows(progressRow(invitationID, "{personal}", allStepsData()))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tenant_invitations SET accepted_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leases SET tenant_user_id").
		WithArgs(userID, sqlmock.AnyArg(), leaseID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	state, err := svc.Complete(context.Background(), "tok_abc", Identity{
		UserID: userID,
		Email:  "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !state.AlreadyCompleted {
		t.Errorf("AlreadyCompleted = false, want true")
	}
	if state.Invitation.AcceptedAt == nil {
		t.Errorf("AcceptedAt not set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCompleteConcurrentWinnerIsNoop(t *testing.T) {
	svc, mock := newOnboardingServiceWithMock(t)

	invitationID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenant_invitations WHERE token").
		WithArgs("tok_abc").
		WillReturnRows(invitationRow(invitationID, uuid.New(), "ada@example.com", nil))
	mock.ExpectExec("INSERT INTO onboarding_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM onboarding_progress WHERE invitation_id").
		WithArgs(invitationID).
		WillReturnRows(progressRow(invitationID, "{}", allStepsData()))
	mock.ExpectBegin()
	// Another Complete set accepted_at between our read and the CAS.
	mock.ExpectExec("UPDATE tenant_invitations SET accepted_at").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	state, err := svc.Complete(context.Background(), "tok_abc", Identity{
		UserID: uuid.New(),
		Email:  "ada@example.com",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !state.AlreadyCompleted {
		t.Errorf("AlreadyCompleted = false, want true")
	}
}
