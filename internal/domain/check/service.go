package check

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/db"
	"github.com/medstock/medstock/internal/platform/errs"
)

// Service implements physical check reconciliation and the audited delete
// path for check records.
type Service struct {
	checks Store
	audits AuditStore
	access auth.AccessResolver
	inTx   db.TxRunner
	logger zerolog.Logger
}

func NewService(checks Store, audits AuditStore, access auth.AccessResolver, inTx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{checks: checks, audits: audits, access: access, inTx: inTx, logger: logger}
}

// CreateCheckRequest carries one reconciliation event. Match on each line is
// caller-supplied; the tolerance policy that produced it lives upstream.
type CreateCheckRequest struct {
	HospitalID uuid.UUID   `json:"hospital_id"`
	UnitID     uuid.UUID   `json:"unit_id"`
	Signature  string      `json:"signature"`
	Items      []CheckItem `json:"items"`
	Notes      string      `json:"notes"`
}

// CreateCheck records a manual-count-vs-system-count reconciliation.
// AllMatch is the conjunction of the supplied per-line match flags.
func (s *Service) CreateCheck(ctx context.Context, actorID uuid.UUID, req CreateCheckRequest) (*ControlledCheck, error) {
	if strings.TrimSpace(req.Signature) == "" {
		return nil, errs.Validationf("check signature is required")
	}
	if len(req.Items) == 0 {
		return nil, errs.Validationf("check must contain at least one item")
	}

	if err := s.checkAccess(ctx, actorID, req.HospitalID, req.UnitID); err != nil {
		return nil, err
	}

	allMatch := true
	for _, it := range req.Items {
		if !it.Match {
			allMatch = false
			break
		}
	}

	c := &ControlledCheck{
		ID:         uuid.New(),
		HospitalID: req.HospitalID,
		UnitID:     req.UnitID,
		ActorID:    actorID,
		Signature:  req.Signature,
		Items:      req.Items,
		AllMatch:   allMatch,
		Notes:      req.Notes,
		RecordedAt: time.Now().UTC(),
	}

	if err := s.checks.Insert(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info().Str("check_id", c.ID.String()).Bool("all_match", allMatch).
		Int("items", len(c.Items)).Msg("controlled check recorded")

	return c, nil
}

// DeleteCheck removes a check record. The full prior snapshot and the reason
// are written to the permanent audit log in the same transaction; a delete
// without a reason is rejected before anything happens.
func (s *Service) DeleteCheck(ctx context.Context, checkID, actorID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errs.Validationf("deletion reason is required")
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		c, err := s.checks.GetByID(ctx, checkID)
		if err != nil {
			return err
		}

		if err := s.checkAccess(ctx, actorID, c.HospitalID, c.UnitID); err != nil {
			return err
		}

		snapshot, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("snapshot check %s: %w", checkID, err)
		}

		entry := &AuditLog{
			ID:         uuid.New(),
			RecordType: RecordTypeControlledCheck,
			RecordID:   c.ID,
			HospitalID: c.HospitalID,
			UnitID:     c.UnitID,
			ActorID:    actorID,
			Action:     AuditActionDelete,
			OldData:    snapshot,
			Reason:     reason,
			RecordedAt: time.Now().UTC(),
		}
		if err := s.audits.Insert(ctx, entry); err != nil {
			return err
		}

		if err := s.checks.Delete(ctx, checkID); err != nil {
			return err
		}

		s.logger.Info().Str("check_id", checkID.String()).Str("reason", reason).
			Msg("controlled check deleted with audit record")
		return nil
	})
}

// GetCheck returns a single check record to a caller with write membership
// in the unit it belongs to.
func (s *Service) GetCheck(ctx context.Context, callerID, id uuid.UUID) (*ControlledCheck, error) {
	c, err := s.checks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, callerID, c.HospitalID, c.UnitID); err != nil {
		return nil, err
	}
	return c, nil
}

// ListChecks lists reconciliation records for a unit, newest first.
func (s *Service) ListChecks(ctx context.Context, callerID, hospitalID, unitID uuid.UUID, limit int) ([]*ControlledCheck, error) {
	if err := s.checkAccess(ctx, callerID, hospitalID, unitID); err != nil {
		return nil, err
	}
	return s.checks.List(ctx, hospitalID, unitID, limit)
}

// ListAuditLogs lists deletion audit entries for a unit, newest first. Empty
// recordType means all record types.
func (s *Service) ListAuditLogs(ctx context.Context, callerID, hospitalID, unitID uuid.UUID, recordType string, limit int) ([]*AuditLog, error) {
	if err := s.checkAccess(ctx, callerID, hospitalID, unitID); err != nil {
		return nil, err
	}
	return s.audits.List(ctx, hospitalID, unitID, recordType, limit)
}

func (s *Service) checkAccess(ctx context.Context, callerID, hospitalID, unitID uuid.UUID) error {
	ok, err := s.access.CanWrite(ctx, callerID, hospitalID, unitID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.AccessDenied()
	}
	return nil
}
