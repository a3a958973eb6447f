// Package directory bridges the hospital's legacy user directory. Staff
// accounts and patient demographics live in tables owned by another system;
// this package exposes the narrow read-only contract the consent backend
// needs and hides the directory's legacy password encoding.
package directory

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the username is unknown,
	// inactive, outside the consent application scope, or the password
	// does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPatientNotFound is returned when no patient row matches the
	// requested document number.
	ErrPatientNotFound = errors.New("patient not found")
)

// StaffUser is an authenticated directory account.
type StaffUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Document    string `json:"document,omitempty"`
	Role        string `json:"role"`
}

// PatientRecord holds the demographics used to prefill a consent form.
type PatientRecord struct {
	Document  string `json:"document"`
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate,omitempty"`
	Age       int    `json:"age,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Client is the read-only contract against the directory.
type Client interface {
	// Authenticate verifies a username/password pair against the
	// directory and returns the matching account.
	Authenticate(ctx context.Context, username, password string) (*StaffUser, error)

	// FindPatient looks up patient demographics by document number.
	FindPatient(ctx context.Context, document string) (*PatientRecord, error)
}

// The directory stores passwords with each byte shifted up by two. This is
// the legacy system's at-rest format, preserved for compatibility with the
// accounts it owns — the consent backend only ever decodes.

// DecodePassword reverses the directory's byte-shift encoding.
func DecodePassword(encoded string) string {
	var b strings.Builder
	b.Grow(len(encoded))
	for _, r := range encoded {
		b.WriteRune(r - 2)
	}
	return b.String()
}

// EncodePassword applies the directory's byte-shift encoding. Used by tests
// and account seeding.
func EncodePassword(plain string) string {
	var b strings.Builder
	b.Grow(len(plain))
	for _, r := range plain {
		b.WriteRune(r + 2)
	}
	return b.String()
}

// RoleForLevel maps the directory's numeric access level onto an API role.
func RoleForLevel(level string) string {
	switch strings.TrimSpace(level) {
	case "1":
		return "admin"
	case "2":
		return "physician"
	default:
		return "nurse"
	}
}
