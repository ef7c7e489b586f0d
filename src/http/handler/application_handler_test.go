package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/http/middleware"
	"github.com/rentfold/tenancy/src/services"
)

func newApplicationRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	payments := services.NewPaymentService(db, nil, log)
	svc := services.NewApplicationReviewService(db, payments, services.NewLogNotifier(log), log)
	h := NewApplicationHandler(svc)

	r := gin.New()
	r.Use(middleware.Identity())
	r.POST("/api/applications/:id/decision", middleware.RequireIdentity, h.Decide)
	return r, mock
}

func testUnitRow(id, landlordID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "property_id", "landlord_id", "unit_number", "monthly_rent", "security_deposit",
		"currency", "is_available", "is_visible", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), landlordID, "4B", "2500.00", "1800.00", "USD", true, true, now, now)
}

func testApplicationRow(id, unitID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "applicant_id", "applicant_email", "unit_id", "status", "data",
		"submitted_at", "reviewed_at", "decision_notes", "created_at", "updated_at",
	}).AddRow(id, uuid.New(), "ada@example.com", unitID, "pending",
		`{"personal":{"full_name":"Ada Park","phone":"555-0100"}}`, now, nil, nil, now, now)
}

func postDecision(r *gin.Engine, appID, callerID uuid.UUID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+appID.String()+"/decision", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", callerID.String())
	req.Header.Set("X-User-Email", "caller@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDecideStrangerForbidden(t *testing.T) {
	r, mock := newApplicationRouter(t)

	appID := uuid.New()
	unitID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(testApplicationRow(appID, unitID))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(testUnitRow(unitID, uuid.New()))

	w := postDecision(r, appID, uuid.New(), `{"decision":"rejected"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideAsUnitOwner(t *testing.T) {
	r, mock := newApplicationRouter(t)

	appID := uuid.New()
	unitID := uuid.New()
	landlordID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tenancy_applications WHERE id").
		WithArgs(appID).
		WillReturnRows(testApplicationRow(appID, unitID))
	mock.ExpectQuery("SELECT (.+) FROM units WHERE id").
		WithArgs(unitID).
		WillReturnRows(testUnitRow(unitID, landlordID))
	mock.ExpectExec("UPDATE tenancy_applications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postDecision(r, appID, landlordID, `{"decision":"rejected"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"rejected"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
