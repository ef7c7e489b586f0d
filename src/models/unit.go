package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unit represents a rentable unit within a property.
type Unit struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PropertyID      uuid.UUID       `json:"property_id" db:"property_id"`
	LandlordID      uuid.UUID       `json:"landlord_id" db:"landlord_id"`
	UnitNumber      string          `json:"unit_number" db:"unit_number"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent" db:"monthly_rent"`
	SecurityDeposit decimal.Decimal `json:"security_deposit" db:"security_deposit"`
	Currency        string          `json:"currency" db:"currency"`
	IsAvailable     bool            `json:"is_available" db:"is_available"`
	IsVisible       bool            `json:"is_visible" db:"is_visible"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CanApply reports whether the unit currently accepts applications.
// A unit under an active lease is never available.
func (u *Unit) CanApply() bool {
	return u.IsAvailable && u.IsVisible
}
