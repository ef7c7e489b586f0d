package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

const invitationTokenBytes = 32

// TenantInvitation binds a unit and tenant email to an onboarding session via
// an unguessable bearer token. Consumable exactly once; repeated loads are
// idempotent reads.
type TenantInvitation struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Token       string     `json:"token" db:"token"`
	TenantEmail string     `json:"tenant_email" db:"tenant_email"`
	TenantName  string     `json:"tenant_name" db:"tenant_name"`
	UnitID      uuid.UUID  `json:"unit_id" db:"unit_id"`
	LeaseID     uuid.UUID  `json:"lease_id" db:"lease_id"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Accepted reports whether onboarding has already completed on this
// invitation.
func (i *TenantInvitation) Accepted() bool {
	return i.AcceptedAt != nil
}

// NewInvitationToken generates an unguessable bearer token.
func NewInvitationToken() (string, error) {
	buf := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
