package template

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a template id resolves to no row.
	ErrNotFound = errors.New("template not found")
)

// ValidationError reports malformed or incomplete template content. The
// operation that produced it was aborted with no state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Template is one immutable version of a consent-form definition. Edits
// never mutate a row; they append a new version to the lineage.
//
// ParentID always points at the lineage ROOT (the version-1 row), not the
// immediately preceding version. It is nil only on the root itself. Exactly
// one row per lineage carries IsCurrent.
type Template struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ParentID      *uuid.UUID      `db:"parent_id" json:"parentId,omitempty"`
	VersionNumber int             `db:"version_number" json:"versionNumber"`
	IsCurrent     bool            `db:"is_current" json:"isCurrent"`
	CreatedBy     string          `db:"created_by" json:"createdBy"`
	Content       TemplateContent `db:"content" json:"content"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// LineageRoot returns the id identifying this template's lineage.
func (t *Template) LineageRoot() uuid.UUID {
	if t.ParentID != nil {
		return *t.ParentID
	}
	return t.ID
}

// TemplateContent is the structured definition of a consent document. All
// legal text is carried verbatim into the rendered document.
type TemplateContent struct {
	Title                     string                    `json:"title"`
	Description               string                    `json:"description,omitempty"`
	HospitalInfo              HospitalInfo              `json:"hospitalInfo"`
	DocumentMetadata          DocumentMetadata          `json:"documentMetadata"`
	PatientFields             []PatientField            `json:"patientFields"`
	ProcedureDescription      string                    `json:"procedureDescription,omitempty"`
	BenefitsRisksAlternatives BenefitsRisksAlternatives `json:"benefitsRisksAlternatives"`
	Implications              string                    `json:"implications,omitempty"`
	Recommendations           string                    `json:"recommendations,omitempty"`
	ConsentStatement          string                    `json:"consentStatement,omitempty"`
	RevocationStatement       string                    `json:"revocationStatement,omitempty"`
	DigitalAuthorizationText  string                    `json:"digitalAuthorizationText,omitempty"`
	SignatureBlocks           []SignatureBlock          `json:"signatureBlocks"`
}

// HospitalInfo identifies the institution on the rendered document header.
type HospitalInfo struct {
	Name    string `json:"name,omitempty"`
	NIT     string `json:"nit,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// DocumentMetadata is the code/version box shown beside the hospital block.
type DocumentMetadata struct {
	Type          string `json:"type,omitempty"`
	Code          string `json:"code,omitempty"`
	Version       string `json:"version,omitempty"`
	EffectiveDate string `json:"effectiveDate,omitempty"`
}

// PatientField declares one patient-input field. Order fixes its position in
// the rendered patient-data table.
type PatientField struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
	Order       int      `json:"order"`
}

// BenefitsRisksAlternatives holds three independent ordered lists rendered
// side by side.
type BenefitsRisksAlternatives struct {
	Benefits     []string `json:"benefits,omitempty"`
	Risks        []string `json:"risks,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// SignatureBlock declares a signature slot by role.
type SignatureBlock struct {
	Role  string `json:"role"`
	Label string `json:"label"`
}

var validFieldTypes = map[string]bool{
	"text":      true,
	"textarea":  true,
	"checkbox":  true,
	"radio":     true,
	"date":      true,
	"signature": true,
}

// Validate checks the content a caller submitted on create or update.
func (c *TemplateContent) Validate() error {
	if c.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if len(c.PatientFields) == 0 {
		return &ValidationError{Field: "patientFields", Reason: "at least one field is required"}
	}
	if len(c.SignatureBlocks) == 0 {
		return &ValidationError{Field: "signatureBlocks", Reason: "at least one signature block is required"}
	}

	seen := make(map[string]bool, len(c.PatientFields))
	for i, f := range c.PatientFields {
		if f.ID == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("patientFields[%d].id", i),
				Reason: "is required",
			}
		}
		if seen[f.ID] {
			return &ValidationError{
				Field:  fmt.Sprintf("patientFields[%d].id", i),
				Reason: fmt.Sprintf("duplicate field id %q", f.ID),
			}
		}
		seen[f.ID] = true
		if f.Label == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("patientFields[%d].label", i),
				Reason: "is required",
			}
		}
		if !validFieldTypes[f.Type] {
			return &ValidationError{
				Field:  fmt.Sprintf("patientFields[%d].type", i),
				Reason: fmt.Sprintf("unknown field type %q", f.Type),
			}
		}
	}

	for i, b := range c.SignatureBlocks {
		if b.Role == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("signatureBlocks[%d].role", i),
				Reason: "is required",
			}
		}
	}

	return nil
}
