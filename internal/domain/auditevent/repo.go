package auditevent

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the audit trail. Entries are append-only; there is no
// update or delete.
type Repository interface {
	Create(ctx context.Context, e *AuditEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*AuditEvent, error)
	Search(ctx context.Context, params SearchParams) ([]*AuditEvent, int, error)
}
