package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/cache"
	"github.com/rentfold/tenancy/src/http/middleware"
	"github.com/rentfold/tenancy/src/services"
)

// PaymentHandler exposes checkout initiation, payment listing, connected
// account provisioning, and the processor webhook.
type PaymentHandler struct {
	payments *services.PaymentService
	deduper  *cache.EventDeduper
	log      *zap.Logger
}

// NewPaymentHandler creates the handler. deduper may be nil when no cache is
// configured; the DB CAS alone still guarantees idempotency.
func NewPaymentHandler(payments *services.PaymentService, deduper *cache.EventDeduper, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, deduper: deduper, log: log}
}

// InitiateCheckout handles POST /api/payments/:id/checkout.
func (h *PaymentHandler) InitiateCheckout(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid payment id: %w", services.ErrValidation))
		return
	}

	url, err := h.payments.InitiateCheckout(c.Request.Context(), paymentID, caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

// ListLeasePayments handles GET /api/leases/:id/payments.
func (h *PaymentHandler) ListLeasePayments(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	leaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("invalid lease id: %w", services.ErrValidation))
		return
	}

	lease, err := h.payments.GetLease(c.Request.Context(), leaseID)
	if err != nil {
		writeError(c, err)
		return
	}
	if lease.TenantUserID != caller.UserID && lease.LandlordID != caller.UserID {
		writeError(c, fmt.Errorf("lease %s is not visible to caller: %w", leaseID, services.ErrForbidden))
		return
	}

	payments, err := h.payments.ListLeasePayments(c.Request.Context(), leaseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// EnsureAccount handles POST /api/landlord/account. The landlord provisions
// (or resumes provisioning of) their payout sub-account.
func (h *PaymentHandler) EnsureAccount(c *gin.Context) {
	caller, _ := middleware.CallerIdentity(c)

	accountID, err := h.payments.EnsureConnectedAccount(c.Request.Context(), caller.UserID, caller.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID})
}

type webhookEvent struct {
	ID   string `json:"id" binding:"required"`
	Type string `json:"type" binding:"required"`
	Data struct {
		PaymentID string `json:"payment_id"`
	} `json:"data"`
}

// Webhook handles POST /webhooks/payments. Redeliveries are acknowledged with
// 200 whether or not they change anything.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var event webhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if h.deduper != nil {
		first, err := h.deduper.FirstDelivery(c.Request.Context(), event.ID)
		if err != nil {
			// Cache down: fall through to the DB CAS.
			h.log.Warn("webhook dedup cache unavailable", zap.Error(err))
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	paymentID, err := uuid.Parse(event.Data.PaymentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_id"})
		return
	}

	switch event.Type {
	case "payment.confirmed":
		err = h.payments.HandlePaymentConfirmed(c.Request.Context(), paymentID)
	case "payment.failed":
		err = h.payments.HandlePaymentFailed(c.Request.Context(), paymentID)
	default:
		// Unrecognized event types are acknowledged so the processor stops
		// redelivering them.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
