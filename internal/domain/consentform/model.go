package consentform

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/consentio/consentio/internal/domain/template"
)

var (
	// ErrNotFound is returned when a form id resolves to no row.
	ErrNotFound = errors.New("consent form not found")
)

// ValidationError reports a malformed submission; nothing was persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Consent decision values as submitted by the frontend.
const (
	ConsentAccepted = "si"
	ConsentRejected = "no"
)

// FilledForm is one signed consent form. It is immutable after creation.
//
// TemplateID references the exact template version the form was filled
// against, never the lineage root. TemplateTitle and TemplateSnapshot are
// denormalized copies taken at fill time so the form keeps listing and
// rendering even if the template row is later hard-deleted.
type FilledForm struct {
	ID               uuid.UUID                `db:"id" json:"id"`
	TemplateID       uuid.UUID                `db:"template_id" json:"templateId"`
	TemplateTitle    string                   `db:"template_title" json:"templateTitle"`
	TemplateSnapshot template.TemplateContent `db:"template_snapshot" json:"templateSnapshot"`
	PatientData      map[string]string        `db:"patient_data" json:"patientData"`
	PatientPhoto     string                   `db:"patient_photo" json:"patientPhoto,omitempty"`
	ConsentResponses map[string]string        `db:"consent_responses" json:"consentResponses"`
	Signatures       map[string]string        `db:"signatures" json:"signatures,omitempty"`
	FilledAt         time.Time                `db:"filled_at" json:"filledAt"`
}

// Consent returns the patient's accept/reject decision, or "" if absent.
func (f *FilledForm) Consent() string {
	return f.ConsentResponses["consent"]
}

var validConsentValues = map[string]bool{
	ConsentAccepted: true,
	ConsentRejected: true,
}

// CreateRequest is the submission payload for a new filled form.
type CreateRequest struct {
	TemplateID       uuid.UUID         `json:"templateId"`
	PatientData      map[string]string `json:"patientData"`
	PatientPhoto     string            `json:"patientPhoto,omitempty"`
	ConsentResponses map[string]string `json:"consentResponses"`
	Signatures       map[string]string `json:"signatures,omitempty"`
}

// Validate checks the submission before it touches the store.
func (r *CreateRequest) Validate() error {
	if r.TemplateID == uuid.Nil {
		return &ValidationError{Field: "templateId", Reason: "is required"}
	}

	consent, ok := r.ConsentResponses["consent"]
	if !ok || consent == "" {
		return &ValidationError{Field: "consentResponses.consent", Reason: "is required"}
	}
	if !validConsentValues[consent] {
		return &ValidationError{
			Field:  "consentResponses.consent",
			Reason: fmt.Sprintf("must be %q or %q", ConsentAccepted, ConsentRejected),
		}
	}

	if da, ok := r.ConsentResponses["digitalAuthorization"]; ok && da != "" && !validConsentValues[da] {
		return &ValidationError{
			Field:  "consentResponses.digitalAuthorization",
			Reason: fmt.Sprintf("must be %q or %q", ConsentAccepted, ConsentRejected),
		}
	}

	return nil
}
