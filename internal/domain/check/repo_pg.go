package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

// StorePG is the Postgres-backed check store. Check items live in a jsonb
// column: they are written once and read back whole, never queried by field.
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

const checkCols = `id, hospital_id, unit_id, actor_id, signature, items, all_match, notes, recorded_at`

func scanCheck(row pgx.Row) (*ControlledCheck, error) {
	var c ControlledCheck
	var items []byte
	err := row.Scan(
		&c.ID, &c.HospitalID, &c.UnitID, &c.ActorID, &c.Signature,
		&items, &c.AllMatch, &c.Notes, &c.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decode check items: %w", err)
	}
	return &c, nil
}

func (r *StorePG) Insert(ctx context.Context, c *ControlledCheck) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encode check items: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx,
		`INSERT INTO controlled_check (`+checkCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.HospitalID, c.UnitID, c.ActorID, c.Signature,
		items, c.AllMatch, c.Notes, c.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert controlled check: %w", err)
	}
	return nil
}

func (r *StorePG) GetByID(ctx context.Context, id uuid.UUID) (*ControlledCheck, error) {
	q := fmt.Sprintf("SELECT %s FROM controlled_check WHERE id = $1", checkCols)
	c, err := scanCheck(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("controlled check", id.String())
	}
	return c, err
}

func (r *StorePG) List(ctx context.Context, hospitalID, unitID uuid.UUID, limit int) ([]*ControlledCheck, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT %s FROM controlled_check
		WHERE hospital_id = $1 AND unit_id = $2
		ORDER BY recorded_at DESC, id DESC LIMIT $3`, checkCols)

	rows, err := r.conn(ctx).Query(ctx, q, hospitalID, unitID, limit)
	if err != nil {
		return nil, fmt.Errorf("list controlled checks: %w", err)
	}
	defer rows.Close()

	var checks []*ControlledCheck
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (r *StorePG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM controlled_check WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete controlled check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("controlled check", id.String())
	}
	return nil
}

// AuditStorePG is the Postgres-backed audit log.
type AuditStorePG struct {
	pool *pgxpool.Pool
}

func NewAuditStorePG(pool *pgxpool.Pool) *AuditStorePG {
	return &AuditStorePG{pool: pool}
}

func (r *AuditStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *AuditStorePG) Insert(ctx context.Context, e *AuditLog) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO audit_log (id, record_type, record_id, hospital_id, unit_id, actor_id, action, old_data, new_data, reason, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RecordType, e.RecordID, e.HospitalID, e.UnitID, e.ActorID, e.Action,
		e.OldData, e.NewData, e.Reason, e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *AuditStorePG) List(ctx context.Context, hospitalID, unitID uuid.UUID, recordType string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, record_type, record_id, hospital_id, unit_id, actor_id, action, old_data, new_data, reason, recorded_at
		 FROM audit_log
		 WHERE hospital_id = $1 AND unit_id = $2 AND ($3 = '' OR record_type = $3)
		 ORDER BY recorded_at DESC, id DESC LIMIT $4`,
		hospitalID, unitID, recordType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*AuditLog
	for rows.Next() {
		var e AuditLog
		if err := rows.Scan(&e.ID, &e.RecordType, &e.RecordID, &e.HospitalID, &e.UnitID, &e.ActorID,
			&e.Action, &e.OldData, &e.NewData, &e.Reason, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
