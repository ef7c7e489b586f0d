package models

import (
	"time"

	"github.com/google/uuid"
)

// NoticeStatus represents the status of an offboarding notice.
type NoticeStatus string

const (
	NoticeStatusActive              NoticeStatus = "active"
	NoticeStatusInspectionScheduled NoticeStatus = "inspection_scheduled"
	NoticeStatusCompleted           NoticeStatus = "completed"
	NoticeStatusCancelled           NoticeStatus = "cancelled"
)

// InitiatorRole identifies which party opened the notice.
type InitiatorRole string

const (
	InitiatorTenant   InitiatorRole = "tenant"
	InitiatorLandlord InitiatorRole = "landlord"
)

// DepositStatus records the security deposit disposition at move-out.
type DepositStatus string

const (
	DepositStatusReturned DepositStatus = "returned"
	DepositStatusPartial  DepositStatus = "partial"
	DepositStatusWithheld DepositStatus = "withheld"
	DepositStatusPending  DepositStatus = "pending"
)

// ValidDepositStatus reports whether s is a known disposition.
func ValidDepositStatus(s DepositStatus) bool {
	switch s {
	case DepositStatusReturned, DepositStatusPartial, DepositStatusWithheld, DepositStatusPending:
		return true
	}
	return false
}

// OffboardingNotice tracks a move-out from notice through inspection to
// completion. At most one notice per lease may be non-terminal at a time,
// enforced by a partial unique index on lease_id.
type OffboardingNotice struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	LeaseID            uuid.UUID      `json:"lease_id" db:"lease_id"`
	InitiatedBy        InitiatorRole  `json:"initiated_by" db:"initiated_by"`
	MoveOutDate        time.Time      `json:"move_out_date" db:"move_out_date"`
	Reason             *string        `json:"reason,omitempty" db:"reason"`
	Status             NoticeStatus   `json:"status" db:"status"`
	CancellationReason *string        `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	InspectionDate     *time.Time     `json:"inspection_date,omitempty" db:"inspection_date"`
	InspectionNotes    *string        `json:"inspection_notes,omitempty" db:"inspection_notes"`
	DepositStatus      *DepositStatus `json:"deposit_status,omitempty" db:"deposit_status"`
	DepositNotes       *string        `json:"deposit_notes,omitempty" db:"deposit_notes"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// CanTransitionTo checks if the notice can move to a new status.
func (n *OffboardingNotice) CanTransitionTo(newStatus NoticeStatus) bool {
	validTransitions := map[NoticeStatus][]NoticeStatus{
		NoticeStatusActive: {
			NoticeStatusInspectionScheduled,
			NoticeStatusCompleted,
			NoticeStatusCancelled,
		},
		NoticeStatusInspectionScheduled: {
			NoticeStatusCompleted,
		},
		NoticeStatusCompleted: {},
		NoticeStatusCancelled: {},
	}

	allowed, exists := validTransitions[n.Status]
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

// IsTerminal returns true once the notice is completed or cancelled.
func (n *OffboardingNotice) IsTerminal() bool {
	return n.Status == NoticeStatusCompleted || n.Status == NoticeStatusCancelled
}

// CanCancel reports whether the notice may still be cancelled. Product policy:
// only tenant-initiated notices are cancellable, and only before an
// inspection has been scheduled.
func (n *OffboardingNotice) CanCancel() bool {
	return n.Status == NoticeStatusActive && n.InitiatedBy == InitiatorTenant
}
