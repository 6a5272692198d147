package item

import (
	"context"

	"github.com/google/uuid"
)

// Store is the narrow item/stock interface the ledger consumes. GetForUpdate
// must take a row-level lock when called inside a transaction (see
// db.InSerializableTx) so concurrent mutations of the same item serialize.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateUnits(ctx context.Context, id uuid.UUID, currentUnits int) error
	GetStockLevel(ctx context.Context, itemID, unitID uuid.UUID) (*StockLevel, error)
	UpsertStockLevel(ctx context.Context, itemID, unitID uuid.UUID, qtyOnHand int) error
}
