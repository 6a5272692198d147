package item

import (
	"time"

	"github.com/google/uuid"
)

// Packaging and dispensing-unit values that trigger the controlled-item
// validation rules.
const (
	PackagingAmpoule = "ampulle"
	UnitPack         = "pack"
)

// Item is an inventory item. For controlled items with trackExactQuantity
// the authoritative count is CurrentUnits (individual dosage units);
// pack-level stock is derived from it.
type Item struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	HospitalID         uuid.UUID `db:"hospital_id" json:"hospital_id"`
	UnitID             uuid.UUID `db:"unit_id" json:"unit_id"`
	Name               string    `db:"name" json:"name"`
	Controlled         bool      `db:"controlled" json:"controlled"`
	TrackExactQuantity bool      `db:"track_exact_quantity" json:"track_exact_quantity"`
	Packaging          string    `db:"packaging" json:"packaging"`
	DispenseUnit       string    `db:"dispense_unit" json:"dispense_unit"`
	PackSize           int       `db:"pack_size" json:"pack_size"`
	CurrentUnits       int       `db:"current_units" json:"current_units"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// StockLevel is the pack-equivalent quantity of an item at a unit.
type StockLevel struct {
	ItemID    uuid.UUID `db:"item_id" json:"item_id"`
	UnitID    uuid.UUID `db:"unit_id" json:"unit_id"`
	QtyOnHand int       `db:"qty_on_hand" json:"qty_on_hand"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
