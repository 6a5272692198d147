package check

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medstock/medstock/internal/platform/auth"
	"github.com/medstock/medstock/internal/platform/errs"
)

type memCheckStore struct {
	byID  map[uuid.UUID]*ControlledCheck
	order []uuid.UUID
}

func newMemCheckStore() *memCheckStore {
	return &memCheckStore{byID: make(map[uuid.UUID]*ControlledCheck)}
}

func (m *memCheckStore) Insert(_ context.Context, c *ControlledCheck) error {
	cp := *c
	m.byID[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return nil
}

func (m *memCheckStore) GetByID(_ context.Context, id uuid.UUID) (*ControlledCheck, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, errs.NotFound("controlled check", id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *memCheckStore) List(_ context.Context, hospitalID, unitID uuid.UUID, limit int) ([]*ControlledCheck, error) {
	var out []*ControlledCheck
	for i := len(m.order) - 1; i >= 0; i-- {
		c, ok := m.byID[m.order[i]]
		if !ok || c.HospitalID != hospitalID || c.UnitID != unitID {
			continue
		}
		cp := *c
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memCheckStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.byID[id]; !ok {
		return errs.NotFound("controlled check", id.String())
	}
	delete(m.byID, id)
	return nil
}

type memAuditStore struct {
	entries []*AuditLog
}

func (m *memAuditStore) Insert(_ context.Context, e *AuditLog) error {
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memAuditStore) List(_ context.Context, hospitalID, unitID uuid.UUID, recordType string, limit int) ([]*AuditLog, error) {
	var out []*AuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.HospitalID != hospitalID || e.UnitID != unitID {
			continue
		}
		if recordType != "" && e.RecordType != recordType {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type denyAll struct{}

func (denyAll) CanWrite(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type checkEnv struct {
	svc        *Service
	checks     *memCheckStore
	audits     *memAuditStore
	hospitalID uuid.UUID
	unitID     uuid.UUID
	actorID    uuid.UUID
}

func newCheckEnv(t *testing.T) *checkEnv {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	checks := newMemCheckStore()
	audits := &memAuditStore{}
	return &checkEnv{
		svc:        NewService(checks, audits, auth.AllowAllResolver{}, passthroughTx, logger),
		checks:     checks,
		audits:     audits,
		hospitalID: uuid.New(),
		unitID:     uuid.New(),
		actorID:    uuid.New(),
	}
}

func (e *checkEnv) createReq(items ...CheckItem) CreateCheckRequest {
	return CreateCheckRequest{
		HospitalID: e.hospitalID,
		UnitID:     e.unitID,
		Signature:  "sig1",
		Items:      items,
	}
}

func TestCreateCheck_AllMatch(t *testing.T) {
	e := newCheckEnv(t)
	itemA, itemB := uuid.New(), uuid.New()

	c, err := e.svc.CreateCheck(context.Background(), e.actorID, e.createReq(
		CheckItem{ItemID: itemA, SystemQty: 3, CountedQty: 3, Match: true},
		CheckItem{ItemID: itemB, SystemQty: 7, CountedQty: 7, Match: true},
	))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	if !c.AllMatch {
		t.Error("all lines match but AllMatch is false")
	}
	if c.ID == uuid.Nil || c.RecordedAt.IsZero() {
		t.Error("check missing identity or timestamp")
	}
	if c.ActorID != e.actorID {
		t.Errorf("actorID = %s, want %s", c.ActorID, e.actorID)
	}
}

func TestCreateCheck_Discrepancy(t *testing.T) {
	e := newCheckEnv(t)

	c, err := e.svc.CreateCheck(context.Background(), e.actorID, e.createReq(
		CheckItem{ItemID: uuid.New(), SystemQty: 3, CountedQty: 3, Match: true},
		CheckItem{ItemID: uuid.New(), SystemQty: 7, CountedQty: 6, Match: false},
	))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	if c.AllMatch {
		t.Error("one line differs but AllMatch is true")
	}
}

func TestCreateCheck_Validation(t *testing.T) {
	e := newCheckEnv(t)
	line := CheckItem{ItemID: uuid.New(), SystemQty: 1, CountedQty: 1, Match: true}

	req := e.createReq(line)
	req.Signature = " "
	if _, err := e.svc.CreateCheck(context.Background(), e.actorID, req); !errs.IsValidation(err) {
		t.Errorf("blank signature: expected ValidationError, got %v", err)
	}

	req = e.createReq()
	if _, err := e.svc.CreateCheck(context.Background(), e.actorID, req); !errs.IsValidation(err) {
		t.Errorf("no items: expected ValidationError, got %v", err)
	}
	if len(e.checks.byID) != 0 {
		t.Error("rejected request persisted a check")
	}
}

func TestCreateCheck_AccessDenied(t *testing.T) {
	e := newCheckEnv(t)
	e.svc.access = denyAll{}

	_, err := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	if !errs.IsAccessDenied(err) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
}

// A deleted check disappears from the store but its full prior state and the
// stated reason survive in the audit log.
func TestDeleteCheck_WritesAuditSnapshot(t *testing.T) {
	e := newCheckEnv(t)
	itemID := uuid.New()

	c, err := e.svc.CreateCheck(context.Background(), e.actorID, e.createReq(
		CheckItem{ItemID: itemID, SystemQty: 3, CountedQty: 2, Match: false},
	))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}

	deleterID := uuid.New()
	if err := e.svc.DeleteCheck(context.Background(), c.ID, deleterID, "recount"); err != nil {
		t.Fatalf("delete check: %v", err)
	}

	if _, err := e.svc.GetCheck(context.Background(), e.actorID, c.ID); !errs.IsNotFound(err) {
		t.Fatalf("deleted check still readable: %v", err)
	}

	logs, err := e.svc.ListAuditLogs(context.Background(), e.actorID, e.hospitalID, e.unitID, RecordTypeControlledCheck, 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(logs))
	}

	entry := logs[0]
	if entry.RecordID != c.ID || entry.ActorID != deleterID {
		t.Errorf("audit entry = {record %s, actor %s}, want {%s, %s}",
			entry.RecordID, entry.ActorID, c.ID, deleterID)
	}
	if entry.Action != AuditActionDelete {
		t.Errorf("action = %s, want %s", entry.Action, AuditActionDelete)
	}
	if entry.Reason != "recount" {
		t.Errorf("reason = %q, want recount", entry.Reason)
	}
	if entry.HospitalID != e.hospitalID || entry.UnitID != e.unitID {
		t.Errorf("audit entry scope = {%s, %s}, want {%s, %s}",
			entry.HospitalID, entry.UnitID, e.hospitalID, e.unitID)
	}

	var snapshot ControlledCheck
	if err := json.Unmarshal(entry.OldData, &snapshot); err != nil {
		t.Fatalf("audit snapshot is not valid json: %v", err)
	}
	if snapshot.ID != c.ID || len(snapshot.Items) != 1 || snapshot.Items[0].ItemID != itemID {
		t.Errorf("snapshot does not restore the deleted check: %+v", snapshot)
	}
	if snapshot.AllMatch {
		t.Error("snapshot lost the discrepancy flag")
	}
}

func TestDeleteCheck_ReasonRequired(t *testing.T) {
	e := newCheckEnv(t)
	c, err := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}

	if err := e.svc.DeleteCheck(context.Background(), c.ID, e.actorID, "  "); !errs.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := e.svc.GetCheck(context.Background(), e.actorID, c.ID); err != nil {
		t.Error("reasonless delete removed the check")
	}
	if len(e.audits.entries) != 0 {
		t.Error("reasonless delete wrote an audit entry")
	}
}

func TestDeleteCheck_Unknown(t *testing.T) {
	e := newCheckEnv(t)
	if err := e.svc.DeleteCheck(context.Background(), uuid.New(), e.actorID, "recount"); !errs.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(e.audits.entries) != 0 {
		t.Error("failed delete wrote an audit entry")
	}
}

func TestDeleteCheck_AccessDenied(t *testing.T) {
	e := newCheckEnv(t)
	c, err := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	e.svc.access = denyAll{}

	if err := e.svc.DeleteCheck(context.Background(), c.ID, e.actorID, "recount"); !errs.IsAccessDenied(err) {
		t.Fatalf("expected AccessDeniedError, got %v", err)
	}
	if _, err := e.checks.GetByID(context.Background(), c.ID); err != nil {
		t.Error("denied delete removed the check")
	}
}

func TestReads_AccessDenied(t *testing.T) {
	e := newCheckEnv(t)
	c, err := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	if err := e.svc.DeleteCheck(context.Background(), c.ID, e.actorID, "recount"); err != nil {
		t.Fatalf("delete check: %v", err)
	}
	c2, err := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	e.svc.access = denyAll{}

	if _, err := e.svc.GetCheck(context.Background(), e.actorID, c2.ID); !errs.IsAccessDenied(err) {
		t.Errorf("GetCheck: expected AccessDeniedError, got %v", err)
	}
	if _, err := e.svc.ListChecks(context.Background(), e.actorID, e.hospitalID, e.unitID, 10); !errs.IsAccessDenied(err) {
		t.Errorf("ListChecks: expected AccessDeniedError, got %v", err)
	}
	if _, err := e.svc.ListAuditLogs(context.Background(), e.actorID, e.hospitalID, e.unitID, "", 10); !errs.IsAccessDenied(err) {
		t.Errorf("ListAuditLogs: expected AccessDeniedError, got %v", err)
	}
}

func TestListChecks_NewestFirstScopedToUnit(t *testing.T) {
	e := newCheckEnv(t)

	first, _ := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))
	second, _ := e.svc.CreateCheck(context.Background(), e.actorID,
		e.createReq(CheckItem{ItemID: uuid.New(), Match: true}))

	otherReq := e.createReq(CheckItem{ItemID: uuid.New(), Match: true})
	otherReq.UnitID = uuid.New()
	if _, err := e.svc.CreateCheck(context.Background(), e.actorID, otherReq); err != nil {
		t.Fatalf("create check in other unit: %v", err)
	}

	checks, err := e.svc.ListChecks(context.Background(), e.actorID, e.hospitalID, e.unitID, 10)
	if err != nil {
		t.Fatalf("list checks: %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[0].ID != second.ID || checks[1].ID != first.ID {
		t.Error("checks not ordered newest first")
	}
}
