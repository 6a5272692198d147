package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medstock/medstock/internal/domain/item"
	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/errs"
	"github.com/medstock/medstock/internal/platform/privacy"
)

// Service is the movement recorder and verification workflow. Append runs
// inside the caller's transaction; Verify and QueryLog are standalone.
type Service struct {
	store  Store
	items  item.Store
	crypto *privacy.Service
	access auth.AccessResolver
	logger zerolog.Logger
}

func NewService(store Store, items item.Store, crypto *privacy.Service, access auth.AccessResolver, logger zerolog.Logger) *Service {
	return &Service{store: store, items: items, crypto: crypto, access: access, logger: logger}
}

// Append assigns identity and timestamp to the movement and persists it.
// A nonzero delta sign must match the movement type; a zero delta carries
// the direction of the requesting operation (a fully-clamped dispense is
// still an OUT row). The ledger service computes both, so a mismatch is a
// programming error surfaced as validation.
func (s *Service) Append(ctx context.Context, a *Activity) (*Activity, error) {
	if !ValidActions[a.Action] {
		return nil, errs.Validationf("unknown action %q", a.Action)
	}
	if a.Delta < 0 && a.MovementType != item.MovementOut {
		return nil, errs.Validationf("negative delta must be an OUT movement")
	}
	if a.Delta > 0 && a.MovementType != item.MovementIn {
		return nil, errs.Validationf("positive delta must be an IN movement")
	}

	a.ID = uuid.New()
	a.RecordedAt = time.Now().UTC()
	if a.Signatures == nil {
		a.Signatures = []string{}
	}

	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// QueryLog lists movements newest first, decrypting sensitive fields at this
// boundary. Decryption only happens for a caller with write membership in
// the queried unit; anyone else gets AccessDeniedError. A record whose
// ciphertext cannot be decrypted is returned with the affected fields named
// in Undecryptable instead of failing the query.
func (s *Service) QueryLog(ctx context.Context, callerID uuid.UUID, q Query) ([]*LogEntry, error) {
	ok, err := s.access.CanWrite(ctx, callerID, q.HospitalID, q.UnitID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AccessDenied()
	}

	activities, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}

	entries := make([]*LogEntry, 0, len(activities))
	for _, a := range activities {
		entries = append(entries, s.decryptEntry(a))
	}
	return entries, nil
}

func (s *Service) decryptEntry(a *Activity) *LogEntry {
	e := &LogEntry{Activity: *a}

	fields := []struct {
		name   string
		enc    string
		target *string
	}{
		{"notes", a.NotesEnc, &e.Notes},
		{"patient_ref", a.PatientRefEnc, &e.PatientRef},
		{"patient_photo", a.PatientPhotoEnc, &e.PatientPhoto},
	}

	for _, f := range fields {
		if f.enc == "" {
			continue
		}
		plain, legacy, err := s.crypto.DecryptField(f.enc)
		if err != nil {
			s.logger.Warn().Str("activity_id", a.ID.String()).Str("field", f.name).
				Err(err).Msg("undecryptable activity field")
			e.Undecryptable = append(e.Undecryptable, f.name)
			continue
		}
		*f.target = plain
		if legacy {
			e.NeedsReencrypt = true
		}
	}
	return e
}

// Verify attaches the confirming second signature to a recorded controlled
// movement. The transition is one way: Unverified -> Verified.
func (s *Service) Verify(ctx context.Context, activityID uuid.UUID, signature string, verifierID uuid.UUID) (*Activity, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, errs.Validationf("verification signature is required")
	}

	a, err := s.store.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}

	it, err := s.items.Get(ctx, a.ItemID)
	if err != nil {
		return nil, err
	}
	if !it.Controlled {
		return nil, errs.Validationf("activity %s does not belong to a controlled item", activityID)
	}

	ok, err := s.access.CanWrite(ctx, verifierID, a.HospitalID, a.UnitID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AccessDenied()
	}

	if a.ControlledVerified {
		return nil, errs.Validationf("activity %s is already verified", activityID)
	}

	if err := s.store.MarkVerified(ctx, activityID, signature, verifierID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("activity_id", activityID.String()).
		Str("verifier_id", verifierID.String()).Msg("controlled movement verified")

	return s.store.GetByID(ctx, activityID)
}
