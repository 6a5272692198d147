package item

import (
	"context"
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

// StorePG is the Postgres-backed item store.
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

const itemCols = `id, hospital_id, unit_id, name, controlled, track_exact_quantity,
	packaging, dispense_unit, pack_size, current_units, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.HospitalID, &it.UnitID, &it.Name, &it.Controlled, &it.TrackExactQuantity,
		&it.Packaging, &it.DispenseUnit, &it.PackSize, &it.CurrentUnits, &it.CreatedAt, &it.UpdatedAt,
	)
	return &it, err
}

func (r *StorePG) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	q := fmt.Sprintf("SELECT %s FROM item WHERE id = $1", itemCols)
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("item", id.String())
	}
	return it, err
}

// GetForUpdate reads the item under FOR UPDATE. The lock wait is bounded by
// the transaction's lock_timeout; a timeout surfaces as a ConcurrencyError
// through the transaction helper.
func (r *StorePG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Item, error) {
	q := fmt.Sprintf("SELECT %s FROM item WHERE id = $1 FOR UPDATE", itemCols)
	it, err := scanItem(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("item", id.String())
	}
	return it, err
}

func (r *StorePG) UpdateUnits(ctx context.Context, id uuid.UUID, currentUnits int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		"UPDATE item SET current_units = $2, updated_at = NOW() WHERE id = $1",
		id, currentUnits,
	)
	if err != nil {
		return fmt.Errorf("update item units: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("item", id.String())
	}
	return nil
}

func (r *StorePG) GetStockLevel(ctx context.Context, itemID, unitID uuid.UUID) (*StockLevel, error) {
	var sl StockLevel
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT item_id, unit_id, qty_on_hand, updated_at FROM stock_level WHERE item_id = $1 AND unit_id = $2",
		itemID, unitID,
	).Scan(&sl.ItemID, &sl.UnitID, &sl.QtyOnHand, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("stock level", itemID.String())
	}
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

func (r *StorePG) UpsertStockLevel(ctx context.Context, itemID, unitID uuid.UUID, qtyOnHand int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO stock_level (item_id, unit_id, qty_on_hand, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (item_id, unit_id) DO UPDATE SET qty_on_hand = $3, updated_at = NOW()`,
		itemID, unitID, qtyOnHand,
	)
	if err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}
	return nil
}
