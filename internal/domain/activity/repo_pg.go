package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medstock/medstock/internal/platform/db"
	"github.com/medstock/medstock/internal/platform/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// StorePG is the Postgres-backed activity log.
type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

func (r *StorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const activityCols = `id, hospital_id, unit_id, item_id, actor_id, action, delta, movement_type,
	controlled, notes_enc, patient_ref_enc, patient_photo_enc, signatures,
	controlled_verified, verified_by, verified_at, before_qty, after_qty, recorded_at`

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.HospitalID, &a.UnitID, &a.ItemID, &a.ActorID, &a.Action, &a.Delta, &a.MovementType,
		&a.Controlled, &a.NotesEnc, &a.PatientRefEnc, &a.PatientPhotoEnc, &a.Signatures,
		&a.ControlledVerified, &a.VerifiedBy, &a.VerifiedAt,
		&a.Metadata.BeforeQty, &a.Metadata.AfterQty, &a.RecordedAt,
	)
	return &a, err
}

func (r *StorePG) Insert(ctx context.Context, a *Activity) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO activity (`+activityCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		a.ID, a.HospitalID, a.UnitID, a.ItemID, a.ActorID, a.Action, a.Delta, a.MovementType,
		a.Controlled, a.NotesEnc, a.PatientRefEnc, a.PatientPhotoEnc, a.Signatures,
		a.ControlledVerified, a.VerifiedBy, a.VerifiedAt,
		a.Metadata.BeforeQty, a.Metadata.AfterQty, a.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *StorePG) GetByID(ctx context.Context, id uuid.UUID) (*Activity, error) {
	q := fmt.Sprintf("SELECT %s FROM activity WHERE id = $1", activityCols)
	a, err := scanActivity(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("activity", id.String())
	}
	return a, err
}

func (r *StorePG) List(ctx context.Context, q Query) ([]*Activity, error) {
	where := []string{"hospital_id = $1", "unit_id = $2"}
	args := []interface{}{q.HospitalID, q.UnitID}
	idx := 3

	if q.ControlledOnly {
		// Routine stock-count corrections are not regulated movements.
		where = append(where, "controlled", fmt.Sprintf("action <> $%d", idx))
		args = append(args, ActionCount)
		idx++
	}
	if len(q.Actions) > 0 {
		where = append(where, fmt.Sprintf("action = ANY($%d)", idx))
		actions := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			actions[i] = string(a)
		}
		args = append(args, actions)
		idx++
	}

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	sql := fmt.Sprintf("SELECT %s FROM activity WHERE %s ORDER BY recorded_at DESC, id DESC LIMIT $%d",
		activityCols, strings.Join(where, " AND "), idx)

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var items []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *StorePG) MarkVerified(ctx context.Context, id uuid.UUID, signature string, verifierID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE activity
		 SET controlled_verified = TRUE,
		     signatures = array_append(signatures, $2),
		     verified_by = $3,
		     verified_at = NOW()
		 WHERE id = $1 AND NOT controlled_verified`,
		id, signature, verifierID,
	)
	if err != nil {
		return fmt.Errorf("mark activity verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or a concurrent verification won; re-read
		// to tell the two apart.
		var verified bool
		err := r.conn(ctx).QueryRow(ctx,
			"SELECT controlled_verified FROM activity WHERE id = $1", id,
		).Scan(&verified)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("activity", id.String())
		}
		if err != nil {
			return fmt.Errorf("mark activity verified: %w", err)
		}
		if verified {
			return errs.Validationf("activity %s is already verified", id)
		}
		return errs.NotFound("activity", id.String())
	}
	return nil
}
