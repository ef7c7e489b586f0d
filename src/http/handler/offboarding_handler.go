package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentfold/tenancy/src/http/middleware"
	"github.com/rentfold/tenancy/src/models"
	"github.com/rentfold/tenancy/src/services"
)

// OffboardingHandler exposes the move-out state machine.
type OffboardingHandler struct {
	offboarding *services.OffboardingService
}

// NewOffboardingHandler creates the handler.
func NewOffboardingHandler(offboarding *services.OffboardingService) *OffboardingHandler {
	return &OffboardingHandler{offboarding: offboarding}
}

type giveNoticeBody struct {
	MoveOutDate *time.Time `json:"move_out_date"`
	Reason      *string    `json:"reason"`
}

// GiveNotice handles POST /api/leases/:id/offboarding. The initiator role is
// derived from which side of the lease the caller is on.
func (h *OffboardingHandler) GiveNotice(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid lease id: %w", services.ErrValidation))
		return
	}

	var body giveNoticeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	lease, err := h.offboarding.GetLease(c.Request.Context(), leaseID)
	if err != nil {
		writeError(c, err)
		return
	}
	var initiator models.InitiatorRole
	switch caller.UserID {
	case lease.TenantUserID:
		initiator = models.InitiatorTenant
	case lease.LandlordID:
		initiator = models.InitiatorLandlord
	default:
		writeError(c, fmt.Errorf("lease %s is not visible to caller: %w", leaseID, services.ErrForbidden))
		return
	}

	notice, err := h.offboarding.GiveNotice(c.Request.Context(), services.GiveNoticeRequest{
		LeaseID:     leaseID,
		InitiatedBy: initiator,
		MoveOutDate: body.MoveOutDate,
		Reason:      body.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notice)
}

type cancelNoticeBody struct {
	Reason *string `json:"reason"`
}

// Cancel handles POST /api/offboarding/:id/cancel.
func (h *OffboardingHandler) Cancel(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	noticeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid notice id: %w", services.ErrValidation))
		return
	}

	var body cancelNoticeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	if err := h.offboarding.Cancel(c.Request.Context(), noticeID, caller.UserID, body.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type scheduleInspectionBody struct {
	InspectionDate  time.Time `json:"inspection_date" binding:"required"`
	InspectionNotes *string   `json:"inspection_notes"`
}

// ScheduleInspection handles POST /api/offboarding/:id/inspection.
func (h *OffboardingHandler) ScheduleInspection(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	noticeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid notice id: %w", services.ErrValidation))
		return
	}

	var body scheduleInspectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	if err := h.offboarding.ScheduleInspection(c.Request.Context(), noticeID, caller.UserID, body.InspectionDate, body.InspectionNotes); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "inspection_scheduled"})
}

type completeOffboardingBody struct {
	InspectionDate  *time.Time `json:"inspection_date"`
	InspectionNotes *string    `json:"inspection_notes"`
	DepositStatus   string     `json:"deposit_status" binding:"required"`
	DepositNotes    *string    `json:"deposit_notes"`
}

// Complete handles POST /api/offboarding/:id/complete.
func (h *OffboardingHandler) Complete(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	noticeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid notice id: %w", services.ErrValidation))
		return
	}

	var body completeOffboardingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	err = h.offboarding.Complete(c.Request.Context(), noticeID, caller.UserID, services.CompleteOffboardingRequest{
		InspectionDate:  body.InspectionDate,
		InspectionNotes: body.InspectionNotes,
		DepositStatus:   models.DepositStatus(body.DepositStatus),
		DepositNotes:    body.DepositNotes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// FastTrack handles POST /api/admin/leases/:id/fast-track.
func (h *OffboardingHandler) FastTrack(c *gin.Context) {
	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid lease id: %w", services.ErrValidation))
		return
	}

	if err := h.offboarding.FastTrack(c.Request.Context(), leaseID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "terminated"})
}
