package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentfold/tenancy/src/http/middleware"
	"github.com/rentfold/tenancy/src/models"
	"github.com/rentfold/tenancy/src/services"
)

// ApplicationHandler exposes application submission and review.
type ApplicationHandler struct {
	review *services.ApplicationReviewService
}

// NewApplicationHandler creates the handler.
func NewApplicationHandler(review *services.ApplicationReviewService) *ApplicationHandler {
	return &ApplicationHandler{review: review}
}

type submitApplicationBody struct {
	UnitID string                 `json:"unit_id" binding:"required"`
	Data   models.ApplicationData `json:"data" binding:"required"`
}

// Submit handles POST /api/applications.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	var body submitApplicationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}
	unitID, err := uuid.Parse(body.UnitID)
	if err != nil {
		writeError(c, fmt.Errorf("invalid unit_id: %w", services.ErrValidation))
		return
	}

	app, err := h.review.Submit(c.Request.Context(), services.SubmitApplicationRequest{
		ApplicantID:    caller.UserID,
		ApplicantEmail: caller.Email,
		UnitID:         unitID,
		Data:           body.Data,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

type decisionBody struct {
	Decision string  `json:"decision" binding:"required"`
	Notes    *string `json:"notes"`
}

// Decide handles POST /api/applications/:id/decision.
func (h *ApplicationHandler) Decide(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid application id: %w", services.ErrValidation))
		return
	}

	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	app, err := h.review.Decide(c.Request.Context(), applicationID, caller.UserID, services.Decision(body.Decision), body.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Withdraw handles POST /api/applications/:id/withdraw.
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid application id: %w", services.ErrValidation))
		return
	}

	app, err := h.review.Withdraw(c.Request.Context(), applicationID, caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
