package activity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medstock/medstock/internal/domain/item"
)

// Action identifies what produced a movement.
type Action string

const (
	ActionCount   Action = "count"
	ActionReceive Action = "receive"
	ActionUse     Action = "use"
	ActionAdjust  Action = "adjust"
)

// ValidActions is the closed set of recordable actions.
var ValidActions = map[Action]bool{
	ActionCount:   true,
	ActionReceive: true,
	ActionUse:     true,
	ActionAdjust:  true,
}

// Metadata captures the authoritative unit count before and after the
// movement, written in the same transaction as the stock change.
type Metadata struct {
	BeforeQty int `json:"beforeQty"`
	AfterQty  int `json:"afterQty"`
}

// Activity is one row of the append-only movement log. Rows are immutable
// after insert except for the verification fields, which flip exactly once.
// Notes and patient references are stored encrypted.
type Activity struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	HospitalID         uuid.UUID         `db:"hospital_id" json:"hospital_id"`
	UnitID             uuid.UUID         `db:"unit_id" json:"unit_id"`
	ItemID             uuid.UUID         `db:"item_id" json:"item_id"`
	ActorID            uuid.UUID         `db:"actor_id" json:"actor_id"`
	Action             Action            `db:"action" json:"action"`
	Delta              int               `db:"delta" json:"delta"`
	MovementType       item.MovementType `db:"movement_type" json:"movement_type"`
	Controlled         bool              `db:"controlled" json:"controlled"`
	NotesEnc           string            `db:"notes_enc" json:"-"`
	PatientRefEnc      string            `db:"patient_ref_enc" json:"-"`
	PatientPhotoEnc    string            `db:"patient_photo_enc" json:"-"`
	Signatures         []string          `db:"signatures" json:"signatures"`
	ControlledVerified bool              `db:"controlled_verified" json:"controlled_verified"`
	VerifiedBy         *uuid.UUID        `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time        `db:"verified_at" json:"verified_at,omitempty"`
	Metadata           Metadata          `json:"metadata"`
	RecordedAt         time.Time         `db:"recorded_at" json:"recorded_at"`
}

// LogEntry is the decrypted, caller-facing view of an Activity. Fields that
// could not be decrypted are named in Undecryptable instead of failing the
// whole listing.
type LogEntry struct {
	Activity
	Notes          string   `json:"notes,omitempty"`
	PatientRef     string   `json:"patient_ref,omitempty"`
	PatientPhoto   string   `json:"patient_photo,omitempty"`
	Undecryptable  []string `json:"undecryptable,omitempty"`
	NeedsReencrypt bool     `json:"needs_reencrypt,omitempty"`
}
