// Package auth holds the narrow authorization surface the ledger consumes.
// Authentication itself (sessions, token issuance) is an external
// collaborator; the ledger only needs to know who acts and whether they may
// write to a unit.
package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessResolver answers whether a user may mutate inventory belonging to a
// hospital unit. Implementations must not leak whether the unit exists.
type AccessResolver interface {
	CanWrite(ctx context.Context, userID, hospitalID, unitID uuid.UUID) (bool, error)
}

// ResolverPG resolves access from the user_unit membership table.
type ResolverPG struct {
	pool *pgxpool.Pool
}

func NewResolverPG(pool *pgxpool.Pool) *ResolverPG {
	return &ResolverPG{pool: pool}
}

func (r *ResolverPG) CanWrite(ctx context.Context, userID, hospitalID, unitID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_unit
			WHERE user_id = $1 AND hospital_id = $2 AND unit_id = $3 AND can_write
		)`,
		userID, hospitalID, unitID,
	).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// AllowAllResolver grants every write. Development mode only.
type AllowAllResolver struct{}

func (AllowAllResolver) CanWrite(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}
