// Package ledger orchestrates every quantity-affecting operation on
// controlled-substance inventory: dispense, receive, manual adjust, and
// stock count. Each operation validates first, then runs its read-modify-
// write and the paired activity append inside one serializable transaction.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medstock/medstock/internal/domain/activity"
	"github.com/medstock/medstock/internal/domain/item"
	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/db"
	"github.com/medstock/medstock/internal/platform/errs"
	"github.com/medstock/medstock/internal/platform/privacy"
)

type Service struct {
	items      item.Store
	activities *activity.Service
	crypto     *privacy.Service
	access     auth.AccessResolver
	inTx       db.TxRunner
	logger     zerolog.Logger
}

func NewService(items item.Store, activities *activity.Service, crypto *privacy.Service, access auth.AccessResolver, inTx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{items: items, activities: activities, crypto: crypto, access: access, inTx: inTx, logger: logger}
}

// DispenseLine is one item of a dispense request. Qty is in packs.
type DispenseLine struct {
	ItemID uuid.UUID `json:"item_id"`
	Qty    int       `json:"qty"`
}

// DispenseRequest dispenses one or more items to a patient. Either a patient
// identifier or a patient photo must be present.
type DispenseRequest struct {
	HospitalID   uuid.UUID      `json:"hospital_id"`
	UnitID       uuid.UUID      `json:"unit_id"`
	Items        []DispenseLine `json:"items"`
	PatientRef   string         `json:"patient_ref"`
	PatientPhoto string         `json:"patient_photo"`
	Signatures   []string       `json:"signatures"`
	Notes        string         `json:"notes"`
}

// ReceiveRequest books incoming stock. Qty is in packs.
type ReceiveRequest struct {
	HospitalID uuid.UUID `json:"hospital_id"`
	UnitID     uuid.UUID `json:"unit_id"`
	ItemID     uuid.UUID `json:"item_id"`
	Qty        int       `json:"qty"`
	Signature  string    `json:"signature"`
	Notes      string    `json:"notes"`
}

// AdjustRequest sets the authoritative unit count of an exact-tracked item.
type AdjustRequest struct {
	HospitalID   uuid.UUID `json:"hospital_id"`
	UnitID       uuid.UUID `json:"unit_id"`
	ItemID       uuid.UUID `json:"item_id"`
	CurrentUnits int       `json:"current_units"`
	Signature    string    `json:"signature"`
	Notes        string    `json:"notes"`
}

// CountRequest records a routine stock count correction.
type CountRequest struct {
	HospitalID   uuid.UUID `json:"hospital_id"`
	UnitID       uuid.UUID `json:"unit_id"`
	ItemID       uuid.UUID `json:"item_id"`
	CountedUnits int       `json:"counted_units"`
	Signature    string    `json:"signature"`
	Notes        string    `json:"notes"`
}

// Dispense removes stock for a patient. All lines commit atomically: if any
// line fails, no stock moves and no activity is recorded. Returns one
// activity per line.
func (s *Service) Dispense(ctx context.Context, actorID uuid.UUID, req DispenseRequest) ([]*activity.Activity, error) {
	if len(req.Items) == 0 {
		return nil, errs.Validationf("dispense requires at least one item")
	}
	for _, line := range req.Items {
		if line.Qty <= 0 {
			return nil, errs.Validationf("dispense quantity must be positive")
		}
	}
	if len(req.Signatures) == 0 {
		return nil, errs.Validationf("dispense requires a signature")
	}
	if req.PatientRef == "" && req.PatientPhoto == "" {
		return nil, errs.Validationf("dispense requires a patient identifier or a patient photo")
	}

	if err := s.checkAccess(ctx, actorID, req.HospitalID, req.UnitID); err != nil {
		return nil, err
	}

	enc, err := s.encryptPayload(req.Notes, req.PatientRef, req.PatientPhoto)
	if err != nil {
		return nil, err
	}

	// Two co-signatures on the originating request verify the movement at
	// creation time; otherwise it waits for an explicit Verify call.
	verified := len(req.Signatures) >= 2

	var recorded []*activity.Activity
	err = s.inTx(ctx, func(ctx context.Context) error {
		recorded = recorded[:0]
		for _, line := range req.Items {
			a, err := s.applyMovement(ctx, movement{
				hospitalID: req.HospitalID,
				unitID:     req.UnitID,
				itemID:     line.ItemID,
				actorID:    actorID,
				action:     activity.ActionUse,
				packQty:    -line.Qty,
				payload:    enc,
				signatures: req.Signatures,
				verified:   verified,
			})
			if err != nil {
				return err
			}
			recorded = append(recorded, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("actor_id", actorID.String()).Int("lines", len(recorded)).Msg("dispense recorded")
	return recorded, nil
}

// Receive books incoming packs.
func (s *Service) Receive(ctx context.Context, actorID uuid.UUID, req ReceiveRequest) (*activity.Activity, error) {
	if req.Qty <= 0 {
		return nil, errs.Validationf("receive quantity must be positive")
	}
	if req.Signature == "" {
		return nil, errs.Validationf("receive requires a signature")
	}
	if err := s.checkAccess(ctx, actorID, req.HospitalID, req.UnitID); err != nil {
		return nil, err
	}

	enc, err := s.encryptPayload(req.Notes, "", "")
	if err != nil {
		return nil, err
	}

	var recorded *activity.Activity
	err = s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.applyMovement(ctx, movement{
			hospitalID: req.HospitalID,
			unitID:     req.UnitID,
			itemID:     req.ItemID,
			actorID:    actorID,
			action:     activity.ActionReceive,
			packQty:    req.Qty,
			payload:    enc,
			signatures: []string{req.Signature},
		})
		recorded = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// Adjust sets the authoritative unit count directly. Adjustments on
// controlled items start unverified and require an explicit second
// signature via the verification workflow.
func (s *Service) Adjust(ctx context.Context, actorID uuid.UUID, req AdjustRequest) (*activity.Activity, error) {
	if req.CurrentUnits < 0 {
		return nil, errs.Validationf("adjusted unit count must not be negative")
	}
	if req.Signature == "" {
		return nil, errs.Validationf("adjust requires a signature")
	}
	if err := s.checkAccess(ctx, actorID, req.HospitalID, req.UnitID); err != nil {
		return nil, err
	}

	enc, err := s.encryptPayload(req.Notes, "", "")
	if err != nil {
		return nil, err
	}

	var recorded *activity.Activity
	err = s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.applyAbsolute(ctx, absolute{
			hospitalID: req.HospitalID,
			unitID:     req.UnitID,
			itemID:     req.ItemID,
			actorID:    actorID,
			action:     activity.ActionAdjust,
			newUnits:   req.CurrentUnits,
			payload:    enc,
			signatures: []string{req.Signature},
		})
		recorded = a
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("item_id", req.ItemID.String()).Int("units", req.CurrentUnits).Msg("manual adjustment recorded")
	return recorded, nil
}

// RecordCount writes a routine stock-count correction. Count movements are
// excluded from controlled-only log queries.
func (s *Service) RecordCount(ctx context.Context, actorID uuid.UUID, req CountRequest) (*activity.Activity, error) {
	if req.CountedUnits < 0 {
		return nil, errs.Validationf("counted units must not be negative")
	}
	if req.Signature == "" {
		return nil, errs.Validationf("count requires a signature")
	}
	if err := s.checkAccess(ctx, actorID, req.HospitalID, req.UnitID); err != nil {
		return nil, err
	}

	enc, err := s.encryptPayload(req.Notes, "", "")
	if err != nil {
		return nil, err
	}

	var recorded *activity.Activity
	err = s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.applyAbsolute(ctx, absolute{
			hospitalID: req.HospitalID,
			unitID:     req.UnitID,
			itemID:     req.ItemID,
			actorID:    actorID,
			action:     activity.ActionCount,
			newUnits:   req.CountedUnits,
			payload:    enc,
			signatures: []string{req.Signature},
		})
		recorded = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// --- internals --------------------------------------------------------------

type encryptedPayload struct {
	notes, patientRef, patientPhoto string
}

func (s *Service) encryptPayload(notes, patientRef, patientPhoto string) (encryptedPayload, error) {
	var p encryptedPayload
	var err error
	if p.notes, err = s.crypto.EncryptField(notes); err != nil {
		return p, err
	}
	if p.patientRef, err = s.crypto.EncryptField(patientRef); err != nil {
		return p, err
	}
	if p.patientPhoto, err = s.crypto.EncryptField(patientPhoto); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Service) checkAccess(ctx context.Context, actorID, hospitalID, unitID uuid.UUID) error {
	ok, err := s.access.CanWrite(ctx, actorID, hospitalID, unitID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.AccessDenied()
	}
	return nil
}

// movement is a pack-quantity-relative mutation (dispense, receive).
type movement struct {
	hospitalID, unitID, itemID, actorID uuid.UUID
	action                              activity.Action
	packQty                             int // signed, in packs
	payload                             encryptedPayload
	signatures                          []string
	verified                            bool
}

// absolute is a set-the-count mutation (adjust, count).
type absolute struct {
	hospitalID, unitID, itemID, actorID uuid.UUID
	action                              activity.Action
	newUnits                            int
	payload                             encryptedPayload
	signatures                          []string
}

// applyMovement re-reads the item under a row lock, applies the pack delta,
// reconciles the derived stock level, and appends the movement record. Runs
// inside the surrounding transaction.
func (s *Service) applyMovement(ctx context.Context, m movement) (*activity.Activity, error) {
	it, err := s.items.GetForUpdate(ctx, m.itemID)
	if err != nil {
		return nil, err
	}
	if err := s.matchOwner(it, m.hospitalID, m.unitID); err != nil {
		return nil, err
	}
	if err := item.Validate(it); err != nil {
		return nil, err
	}

	if it.TrackExactQuantity {
		deltaUnits := m.packQty * it.PackSize
		if it.PackSize <= 0 {
			deltaUnits = m.packQty
		}
		return s.writeUnits(ctx, it, m, it.CurrentUnits, deltaUnits)
	}

	// Non-tracked items move whole packs on the stock level only.
	before := 0
	if sl, err := s.items.GetStockLevel(ctx, m.itemID, m.unitID); err == nil {
		before = sl.QtyOnHand
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	after, _ := item.ApplyDelta(before, m.packQty)
	if err := s.items.UpsertStockLevel(ctx, m.itemID, m.unitID, after); err != nil {
		return nil, err
	}
	return s.appendActivity(ctx, it, m, m.packQty, before, after)
}

// applyAbsolute sets the unit count outright, deriving the delta from the
// locked before-state.
func (s *Service) applyAbsolute(ctx context.Context, a absolute) (*activity.Activity, error) {
	it, err := s.items.GetForUpdate(ctx, a.itemID)
	if err != nil {
		return nil, err
	}
	if err := s.matchOwner(it, a.hospitalID, a.unitID); err != nil {
		return nil, err
	}
	if err := item.Validate(it); err != nil {
		return nil, err
	}
	if !it.TrackExactQuantity {
		return nil, errs.Validationf("item %s does not track exact quantities", a.itemID)
	}

	m := movement{
		hospitalID: a.hospitalID, unitID: a.unitID, itemID: a.itemID, actorID: a.actorID,
		action: a.action, payload: a.payload, signatures: a.signatures,
	}
	return s.writeUnits(ctx, it, m, it.CurrentUnits, a.newUnits-it.CurrentUnits)
}

// writeUnits is the single code path that changes currentUnits. It keeps the
// conservation invariant: qtyOnHand == ceil(currentUnits / packSize) after
// every commit.
func (s *Service) writeUnits(ctx context.Context, it *item.Item, m movement, before, deltaUnits int) (*activity.Activity, error) {
	after, _ := item.ApplyDelta(before, deltaUnits)

	if err := s.items.UpdateUnits(ctx, it.ID, after); err != nil {
		return nil, err
	}
	if it.PackSize > 0 {
		if err := s.items.UpsertStockLevel(ctx, it.ID, it.UnitID, item.StockFromUnits(after, it.PackSize)); err != nil {
			return nil, err
		}
	}
	return s.appendActivity(ctx, it, m, deltaUnits, before, after)
}

// appendActivity records the movement. The movement type follows the
// requested delta, so a fully-clamped dispense is still an OUT row (with a
// recorded delta of zero); the recorded delta is what actually applied.
func (s *Service) appendActivity(ctx context.Context, it *item.Item, m movement, requestedDelta, before, after int) (*activity.Activity, error) {
	_, mv := item.ApplyDelta(before, requestedDelta)

	return s.activities.Append(ctx, &activity.Activity{
		HospitalID:         it.HospitalID,
		UnitID:             it.UnitID,
		ItemID:             it.ID,
		ActorID:            m.actorID,
		Action:             m.action,
		Delta:              after - before,
		MovementType:       mv,
		Controlled:         it.Controlled,
		NotesEnc:           m.payload.notes,
		PatientRefEnc:      m.payload.patientRef,
		PatientPhotoEnc:    m.payload.patientPhoto,
		Signatures:         append([]string{}, m.signatures...),
		ControlledVerified: it.Controlled && m.verified,
		Metadata:           activity.Metadata{BeforeQty: before, AfterQty: after},
	})
}

func (s *Service) matchOwner(it *item.Item, hospitalID, unitID uuid.UUID) error {
	if it.HospitalID != hospitalID || it.UnitID != unitID {
		return errs.AccessDenied()
	}
	return nil
}
