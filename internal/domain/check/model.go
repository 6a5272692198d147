package check

import (
	"time"

	"github.com/google/uuid"
)

// CheckItem is one counted line of a physical check. Match is supplied by
// the caller: whatever tolerance policy produced it is not re-derived here.
type CheckItem struct {
	ItemID     uuid.UUID `json:"itemId"`
	SystemQty  int       `json:"systemQty"`
	CountedQty int       `json:"countedQty"`
	Match      bool      `json:"match"`
}

// ControlledCheck is a manual-count-vs-system-count audit record. It is
// immutable once written; the only way out is the audited delete path.
type ControlledCheck struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	HospitalID uuid.UUID   `db:"hospital_id" json:"hospital_id"`
	UnitID     uuid.UUID   `db:"unit_id" json:"unit_id"`
	ActorID    uuid.UUID   `db:"actor_id" json:"actor_id"`
	Signature  string      `db:"signature" json:"signature"`
	Items      []CheckItem `db:"items" json:"items"`
	AllMatch   bool        `db:"all_match" json:"all_match"`
	Notes      string      `db:"notes" json:"notes,omitempty"`
	RecordedAt time.Time   `db:"recorded_at" json:"recorded_at"`
}

// AuditLog records the deletion of an otherwise-immutable record. Entries
// are permanent.
type AuditLog struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RecordType string    `db:"record_type" json:"record_type"`
	RecordID   uuid.UUID `db:"record_id" json:"record_id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	UnitID     uuid.UUID `db:"unit_id" json:"unit_id"`
	ActorID    uuid.UUID `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	OldData    []byte    `db:"old_data" json:"old_data,omitempty"`
	NewData    []byte    `db:"new_data" json:"new_data,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

const (
	RecordTypeControlledCheck = "controlled_check"
	AuditActionDelete         = "delete"
)
