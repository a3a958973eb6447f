package template

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists template versions. Write operations that must be
// atomic run inside InTx; LockLineage serializes concurrent writers on one
// lineage so version numbers are never computed twice.
type Repository interface {
	// InTx runs fn inside a single transaction. Repository calls made with
	// the context passed to fn share that transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockLineage takes a transaction-scoped exclusive lock on the lineage
	// identified by its root id. Must be called inside InTx.
	LockLineage(ctx context.Context, root uuid.UUID) error

	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	ListCurrent(ctx context.Context, limit, offset int) ([]*Template, int, error)
	// ListLineage returns every version in a lineage, newest first.
	ListLineage(ctx context.Context, root uuid.UUID) ([]*Template, error)
	// DemoteCurrent clears the current flag across a lineage.
	DemoteCurrent(ctx context.Context, root uuid.UUID) error
	// NextVersionNumber returns max(version_number)+1 for a lineage. Must be
	// called with the lineage lock held.
	NextVersionNumber(ctx context.Context, root uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
