package activity

import (
	"context"

	"github.com/google/uuid"
)

// Query selects activities. Actions empty means all actions; ControlledOnly
// restricts to controlled items and excludes routine count corrections.
type Query struct {
	HospitalID     uuid.UUID
	UnitID         uuid.UUID
	ControlledOnly bool
	Actions        []Action
	Limit          int
}

// Store is the append-only activity log. There is deliberately no update or
// delete: MarkVerified is the single permitted post-insert change, and it
// reports an already-verified row as a validation failure rather than
// not-found.
type Store interface {
	Insert(ctx context.Context, a *Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Activity, error)
	List(ctx context.Context, q Query) ([]*Activity, error)
	MarkVerified(ctx context.Context, id uuid.UUID, signature string, verifierID uuid.UUID) error
}
