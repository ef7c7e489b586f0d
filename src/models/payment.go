package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // Payment created, checkout not yet started
	PaymentStatusProcessing PaymentStatus = "processing" // Checkout session open with the processor
	PaymentStatusCompleted  PaymentStatus = "completed"  // Processor confirmed the payment
	PaymentStatusFailed     PaymentStatus = "failed"     // Processor reported failure
)

// PaymentType represents the kind of payment being collected.
type PaymentType string

const (
	PaymentTypeMoveIn PaymentType = "move_in" // First month's rent + security deposit
	PaymentTypeRent   PaymentType = "rent"
	PaymentTypeOther  PaymentType = "other"
)

// MoveInBreakdown is the structured notes payload recorded on a move-in
// payment. The deposit entry is omitted when the unit carries no deposit.
type MoveInBreakdown struct {
	RentAmount      string `json:"rentAmount"`
	SecurityDeposit string `json:"securityDeposit,omitempty"`
}

// Payment represents a payment owed under a lease.
type Payment struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	LeaseID      uuid.UUID       `json:"lease_id" db:"lease_id"`
	TenantUserID uuid.UUID       `json:"tenant_user_id" db:"tenant_user_id"`
	UnitID       uuid.UUID       `json:"unit_id" db:"unit_id"`
	Type         PaymentType     `json:"type" db:"type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Currency     string          `json:"currency" db:"currency"`
	Status       PaymentStatus   `json:"status" db:"status"`
	DueDate      time.Time       `json:"due_date" db:"due_date"`
	PaidAt       *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Notes        JSONB           `json:"notes,omitempty" db:"notes"`
	SessionID    *string         `json:"session_id,omitempty" db:"session_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo checks if the payment can transition to a new status.
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	validTransitions := map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending: {
			PaymentStatusProcessing,
		},
		PaymentStatusProcessing: {
			PaymentStatusCompleted,
			PaymentStatusFailed,
		},
		PaymentStatusCompleted: {},
		PaymentStatusFailed:    {},
	}

	allowed, exists := validTransitions[p.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the payment is in a terminal state.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}
