package auditevent

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an audit event id resolves to no row.
var ErrNotFound = errors.New("audit event not found")

// AuditEvent is one persisted entry of the access trail: who did what to
// which resource, when and from where.
type AuditEvent struct {
	ID           uuid.UUID              `db:"id" json:"id"`
	Recorded     time.Time              `db:"recorded" json:"recorded"`
	Username     string                 `db:"username" json:"username"`
	UserName     string                 `db:"user_name" json:"userName,omitempty"`
	Action       string                 `db:"action" json:"action"`
	ResourceType string                 `db:"resource_type" json:"resourceType,omitempty"`
	ResourceID   string                 `db:"resource_id" json:"resourceId,omitempty"`
	Details      map[string]interface{} `db:"details" json:"details,omitempty"`
	IPAddress    string                 `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent    string                 `db:"user_agent" json:"userAgent,omitempty"`
	RequestID    string                 `db:"request_id" json:"requestId,omitempty"`
}

// SearchParams filters the audit trail listing.
type SearchParams struct {
	Username     string
	Action       string
	ResourceType string
	Limit        int
	Offset       int
}
