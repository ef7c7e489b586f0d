package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StepData maps a step id to the answers recorded for that step.
type StepData map[StepID]json.RawMessage

// Value implements driver.Valuer.
func (d StepData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *StepData) Scan(value interface{}) error {
	if value == nil {
		*d = StepData{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StepData", value)
	}
	return json.Unmarshal(raw, d)
}

// OnboardingProgress tracks the tenant's position in the onboarding wizard,
// keyed by invitation. Mutated incrementally; the terminal write that sets the
// invitation's accepted_at is the only irreversible transition.
type OnboardingProgress struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	InvitationID   uuid.UUID      `json:"invitation_id" db:"invitation_id"`
	CurrentStep    int            `json:"current_step" db:"current_step"`
	CompletedSteps pq.StringArray `json:"completed_steps" db:"completed_steps"`
	Data           StepData       `json:"data" db:"data"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// HasCompleted reports whether a step is in the completed set.
func (p *OnboardingProgress) HasCompleted(step StepID) bool {
	for _, s := range p.CompletedSteps {
		if StepID(s) == step {
			return true
		}
	}
	return false
}

// MarkCompleted adds a step to the completed set. Re-saving a step does not
// duplicate it.
func (p *OnboardingProgress) MarkCompleted(step StepID) {
	if !p.HasCompleted(step) {
		p.CompletedSteps = append(p.CompletedSteps, string(step))
	}
}

// SetStepData overwrites the answers recorded for a step.
func (p *OnboardingProgress) SetStepData(step StepID, raw json.RawMessage) {
	if p.Data == nil {
		p.Data = StepData{}
	}
	p.Data[step] = raw
}

// MissingSteps returns the required steps that carry no data yet.
func (p *OnboardingProgress) MissingSteps() []StepID {
	var missing []StepID
	for _, step := range RequiredOnboardingSteps {
		if _, ok := p.Data[step]; !ok {
			missing = append(missing, step)
		}
	}
	return missing
}
