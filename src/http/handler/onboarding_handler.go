package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentfold/tenancy/src/http/middleware"
	"github.com/rentfold/tenancy/src/models"
	"github.com/rentfold/tenancy/src/services"
)

// OnboardingHandler exposes the token-authenticated onboarding wizard. Get
// and Save are authenticated by token possession alone; Complete additionally
// requires the verified identity so the email can be matched.
type OnboardingHandler struct {
	onboarding *services.OnboardingService
}

// NewOnboardingHandler creates the handler.
func NewOnboardingHandler(onboarding *services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

// Get handles GET /api/onboarding/:token.
func (h *OnboardingHandler) Get(c *gin.Context) {
	state, err := h.onboarding.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type saveStepBody struct {
	Data      json.RawMessage `json:"data" binding:"required"`
	AdvanceTo *int            `json:"advance_to"`
}

// SaveStep handles PUT /api/onboarding/:token/steps/:step.
func (h *OnboardingHandler) SaveStep(c *gin.Context) {
	var body saveStepBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, fmt.Errorf("%v: %w", err, services.ErrValidation))
		return
	}

	progress, err := h.onboarding.Save(
		c.Request.Context(),
		c.Param("token"),
		models.StepID(c.Param("step")),
		body.Data,
		body.AdvanceTo,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Complete handles POST /api/onboarding/:token/complete.
func (h *OnboardingHandler) Complete(c *gin.Context) {
	caller, ok := middleware.CallerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	state, err := h.onboarding.Complete(c.Request.Context(), c.Param("token"), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
