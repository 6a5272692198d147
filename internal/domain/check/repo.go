package check

import (
	"context"

	"github.com/google/uuid"
)

// Store persists controlled checks. Delete is plain removal; the audited
// snapshot is the service's responsibility and happens in the same
// transaction.
type Store interface {
	Insert(ctx context.Context, c *ControlledCheck) error
	GetByID(ctx context.Context, id uuid.UUID) (*ControlledCheck, error)
	List(ctx context.Context, hospitalID, unitID uuid.UUID, limit int) ([]*ControlledCheck, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditStore persists permanent audit-log entries. Entries carry the
// hospital/unit of the record they describe so listings stay unit-scoped.
type AuditStore interface {
	Insert(ctx context.Context, e *AuditLog) error
	List(ctx context.Context, hospitalID, unitID uuid.UUID, recordType string, limit int) ([]*AuditLog, error)
}
