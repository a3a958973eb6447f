package consentform

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists filled consent forms. Forms are write-once: there is
// no update operation.
type Repository interface {
	Create(ctx context.Context, f *FilledForm) error
	GetByID(ctx context.Context, id uuid.UUID) (*FilledForm, error)
	List(ctx context.Context, limit, offset int) ([]*FilledForm, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
