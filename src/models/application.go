package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus represents the lifecycle status of a tenancy application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// TenancyApplication represents one submission attempt for a unit.
type TenancyApplication struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	ApplicantID    uuid.UUID         `json:"applicant_id" db:"applicant_id"`
	ApplicantEmail string            `json:"applicant_email" db:"applicant_email"`
	UnitID         uuid.UUID         `json:"unit_id" db:"unit_id"`
	Status         ApplicationStatus `json:"status" db:"status"`
	Data           JSONB             `json:"data" db:"data"`
	SubmittedAt    time.Time         `json:"submitted_at" db:"submitted_at"`
	ReviewedAt     *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	DecisionNotes  *string           `json:"decision_notes,omitempty" db:"decision_notes"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo checks if the application can move to a new status.
func (a *TenancyApplication) CanTransitionTo(newStatus ApplicationStatus) bool {
	validTransitions := map[ApplicationStatus][]ApplicationStatus{
		ApplicationStatusPending: {
			ApplicationStatusApproved,
			ApplicationStatusRejected,
			ApplicationStatusWithdrawn,
		},
		ApplicationStatusApproved:  {},
		ApplicationStatusRejected:  {},
		ApplicationStatusWithdrawn: {},
	}

	allowed, exists := validTransitions[a.Status]
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

// IsTerminal returns true once the application has been decided or withdrawn.
func (a *TenancyApplication) IsTerminal() bool {
	return a.Status != ApplicationStatusPending
}
