package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StepID identifies one section of the application/onboarding data. The same
// section schemas back both the initial application and the onboarding wizard.
type StepID string

const (
	StepPersonal         StepID = "personal"
	StepEmployment       StepID = "employment"
	StepProofOfAddress   StepID = "proof_of_address"
	StepEmergencyContact StepID = "emergency_contact"
	StepPhotoID          StepID = "photo_id"
)

// RequiredOnboardingSteps lists every step, in wizard order, that must carry
// data before onboarding can complete.
var RequiredOnboardingSteps = []StepID{
	StepPersonal,
	StepEmployment,
	StepProofOfAddress,
	StepEmergencyContact,
	StepPhotoID,
}

// StepNumber returns the 1-based wizard position of a step, or 0 if unknown.
func StepNumber(id StepID) int {
	for i, s := range RequiredOnboardingSteps {
		if s == id {
			return i + 1
		}
	}
	return 0
}

// PersonalSection holds the applicant's personal details.
type PersonalSection struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
}

// Validate checks required fields.
func (s *PersonalSection) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return fmt.Errorf("personal: full_name is required")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return fmt.Errorf("personal: phone is required")
	}
	return nil
}

// EmploymentSection holds the applicant's employment details.
type EmploymentSection struct {
	Employer      string `json:"employer"`
	Position      string `json:"position"`
	MonthlyIncome string `json:"monthly_income"`
}

// Validate checks required fields.
func (s *EmploymentSection) Validate() error {
	if strings.TrimSpace(s.Employer) == "" {
		return fmt.Errorf("employment: employer is required")
	}
	return nil
}

// DocumentSection holds a reference to an uploaded document. Only the durable
// storage URL and filename are recorded, never file bytes.
type DocumentSection struct {
	DocumentURL string `json:"document_url"`
	FileName    string `json:"file_name"`
}

// Validate checks required fields.
func (s *DocumentSection) Validate() error {
	if strings.TrimSpace(s.DocumentURL) == "" {
		return fmt.Errorf("document_url is required")
	}
	return nil
}

// EmergencyContactSection holds an emergency contact.
type EmergencyContactSection struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

// Validate checks required fields.
func (s *EmergencyContactSection) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("emergency_contact: name is required")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return fmt.Errorf("emergency_contact: phone is required")
	}
	return nil
}

// ValidateStepData decodes raw step data against the schema for the given
// step, rejecting unknown steps and malformed payloads at the boundary.
func ValidateStepData(step StepID, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("step %s: empty payload", step)
	}
	var section interface{ Validate() error }
	switch step {
	case StepPersonal:
		section = &PersonalSection{}
	case StepEmployment:
		section = &EmploymentSection{}
	case StepProofOfAddress, StepPhotoID:
		section = &DocumentSection{}
	case StepEmergencyContact:
		section = &EmergencyContactSection{}
	default:
		return fmt.Errorf("unknown step %q", step)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(section); err != nil {
		return fmt.Errorf("step %s: %w", step, err)
	}
	return section.Validate()
}

// ApplicationData is the structured application payload: a tagged union of
// known section schemas rather than a free-form map.
type ApplicationData struct {
	Personal         *PersonalSection         `json:"personal,omitempty"`
	Employment       *EmploymentSection       `json:"employment,omitempty"`
	ProofOfAddress   *DocumentSection         `json:"proof_of_address,omitempty"`
	EmergencyContact *EmergencyContactSection `json:"emergency_contact,omitempty"`
	PhotoID          *DocumentSection         `json:"photo_id,omitempty"`
}

// Validate checks the sections required at submission time. Document sections
// are optional on the application; they are collected again during onboarding.
func (d *ApplicationData) Validate() error {
	if d.Personal == nil {
		return fmt.Errorf("personal section is required")
	}
	if err := d.Personal.Validate(); err != nil {
		return err
	}
	if d.Employment == nil {
		return fmt.Errorf("employment section is required")
	}
	if err := d.Employment.Validate(); err != nil {
		return err
	}
	if d.EmergencyContact == nil {
		return fmt.Errorf("emergency_contact section is required")
	}
	if err := d.EmergencyContact.Validate(); err != nil {
		return err
	}
	for _, doc := range []*DocumentSection{d.ProofOfAddress, d.PhotoID} {
		if doc != nil {
			if err := doc.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
