package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaseStatus represents the lifecycle status of a lease.
type LeaseStatus string

const (
	LeaseStatusActive      LeaseStatus = "active"
	LeaseStatusNoticeGiven LeaseStatus = "notice_given"
	LeaseStatusTerminated  LeaseStatus = "terminated"
)

// Lease is created exactly once per approved application and owned jointly by
// the approval transaction and the offboarding state machine.
type Lease struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	TenantUserID    uuid.UUID       `json:"tenant_user_id" db:"tenant_user_id"`
	UnitID          uuid.UUID       `json:"unit_id" db:"unit_id"`
	LandlordID      uuid.UUID       `json:"landlord_id" db:"landlord_id"`
	LeaseStart      time.Time       `json:"lease_start" db:"lease_start"`
	LeaseEnd        time.Time       `json:"lease_end" db:"lease_end"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent" db:"monthly_rent"`
	Currency        string          `json:"currency" db:"currency"`
	RentDueDay      int             `json:"rent_due_day" db:"rent_due_day"`
	SecurityDeposit decimal.Decimal `json:"security_deposit" db:"security_deposit"`
	Status          LeaseStatus     `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo checks if the lease can move to a new status. A terminated
// lease never leaves that state; fast-track termination is allowed straight
// from active.
func (l *Lease) CanTransitionTo(newStatus LeaseStatus) bool {
	validTransitions := map[LeaseStatus][]LeaseStatus{
		LeaseStatusActive: {
			LeaseStatusNoticeGiven,
			LeaseStatusTerminated,
		},
		LeaseStatusNoticeGiven: {
			LeaseStatusActive, // notice cancelled
			LeaseStatusTerminated,
		},
		LeaseStatusTerminated: {},
	}

	allowed, exists := validTransitions[l.Status]
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

// IsActive reports whether the lease still binds the tenant to the unit.
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive || l.Status == LeaseStatusNoticeGiven
}
