package item

import "github.com/medstock/medstock/internal/platform/errs"

// Pure quantity reconciliation. No I/O here: identical inputs always yield
// identical outputs, so the ledger service can re-run these inside a
// transaction after re-reading authoritative state.

// MovementType classifies a quantity change.
type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// StockFromUnits converts an exact unit count into the pack-equivalent
// stock level: ceil(currentUnits / packSize). An opened pack still occupies
// a slot in the cabinet.
func StockFromUnits(currentUnits, packSize int) int {
	if packSize <= 0 {
		return 0
	}
	return (currentUnits + packSize - 1) / packSize
}

// ApplyDelta applies a signed unit delta to the current count, clamping at
// zero, and classifies the movement. A requested delta of zero counts as IN.
func ApplyDelta(currentUnits, deltaUnits int) (newUnits int, movement MovementType) {
	newUnits = currentUnits + deltaUnits
	if newUnits < 0 {
		newUnits = 0
	}
	movement = MovementIn
	if deltaUnits < 0 {
		movement = MovementOut
	}
	return newUnits, movement
}

// Validate checks the packaging invariants for controlled items before any
// computation. Violations reject the request with a ValidationError; no
// mutation is attempted.
func Validate(it *Item) error {
	if !it.Controlled {
		return nil
	}
	if it.Packaging == PackagingAmpoule && it.PackSize <= 0 {
		return errs.Validationf("controlled item %s: ampoule packaging requires a positive pack size", it.ID)
	}
	if it.DispenseUnit == UnitPack && !it.TrackExactQuantity {
		return errs.Validationf("controlled item %s: pack dispensing requires exact quantity tracking", it.ID)
	}
	return nil
}
