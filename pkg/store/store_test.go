package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrder(id int64) *model.OrderResource {
	assignee := int64(7)
	return &model.OrderResource{
		ID:           id,
		Number:       "ORD-1001",
		CustomerName: "Acme Wholesale",
		Status:       model.StatusPicking,
		AssignedTo:   &assignee,
		StatusHistory: []model.HistoryEntry{
			{Status: model.StatusPending, CreatedAt: time.Now().UTC()},
			{Status: model.StatusPicking, Comment: "taken by Alice Picker", CreatedAt: time.Now().UTC()},
		},
	}
}

var testActor = model.Actor{ID: 7, Name: "Alice Picker", Role: model.RolePicker}

// --- Snapshot tests ---

func TestSaveAndGetSnapshot(t *testing.T) {
	s := newTestStore(t)
	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveSnapshot(testOrder(42), fetched); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	c, err := s.GetSnapshot(42)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if c.Order.ID != 42 || c.Order.Status != model.StatusPicking {
		t.Fatalf("got %+v", c.Order)
	}
	if id, ok := c.Order.AssignedToID(); !ok || id != 7 {
		t.Fatalf("assignee lost in round trip: %v, %v", id, ok)
	}
	if c.Order.HistoryLen() != 2 {
		t.Fatalf("history len = %d, want 2", c.Order.HistoryLen())
	}
	if !c.FetchedAt.Equal(fetched) {
		t.Fatalf("fetched_at = %v, want %v", c.FetchedAt, fetched)
	}
}

func TestGetSnapshot_NotCached(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSnapshot(999); !errors.Is(err, ErrNotCached) {
		t.Fatalf("err = %v, want ErrNotCached", err)
	}
}

func TestSaveSnapshot_Upserts(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	o := testOrder(42)
	s.SaveSnapshot(o, now)

	o.Status = model.StatusInDelivery
	if err := s.SaveSnapshot(o, now.Add(time.Minute)); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}

	c, err := s.GetSnapshot(42)
	if err != nil {
		t.Fatal(err)
	}
	if c.Order.Status != model.StatusInDelivery {
		t.Fatalf("status = %s, want updated IN_DELIVERY", c.Order.Status)
	}
}

func TestCachedSnapshot_Stale(t *testing.T) {
	now := time.Now().UTC()
	c := &CachedSnapshot{FetchedAt: now.Add(-2 * time.Minute)}
	if !c.Stale(time.Minute, now) {
		t.Fatal("2-minute-old snapshot should be stale at 1-minute TTL")
	}
	if c.Stale(time.Hour, now) {
		t.Fatal("2-minute-old snapshot should be fresh at 1-hour TTL")
	}
}

func TestPruneSnapshots_KeepsOrdersWithActions(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	old := now.Add(-time.Hour)

	s.SaveSnapshot(testOrder(1), old)
	s.SaveSnapshot(testOrder(2), old)
	s.SaveSnapshot(testOrder(3), now)

	// Order 2 has an outstanding action; its snapshot must survive.
	e := ledger.NewEntry(model.ActionTaken, testActor, now)
	if err := s.SaveAction(2, e, nil); err != nil {
		t.Fatalf("SaveAction: %v", err)
	}

	n, err := s.PruneSnapshots(10*time.Minute, now)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if _, err := s.GetSnapshot(1); !errors.Is(err, ErrNotCached) {
		t.Fatal("order 1 should be pruned")
	}
	if _, err := s.GetSnapshot(2); err != nil {
		t.Fatalf("order 2 (outstanding action) should survive: %v", err)
	}
	if _, err := s.GetSnapshot(3); err != nil {
		t.Fatalf("fresh order 3 should survive: %v", err)
	}
}

// --- Action tests ---

func TestSaveGetClearAction(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := ledger.NewEntry(model.ActionTaken, testActor, now)
	steps := []model.SyntheticStep{{
		Kind:          model.ActionTaken,
		Status:        model.StatusPending,
		Role:          model.RolePicker,
		ActorID:       7,
		ActorName:     "Alice Picker",
		CorrelationID: e.CorrelationID,
		CreatedAt:     now,
	}}

	if err := s.SaveAction(42, e, steps); err != nil {
		t.Fatalf("SaveAction: %v", err)
	}

	a, err := s.GetAction(42)
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if a.Entry.Action != model.ActionTaken || a.Entry.Actor.ID != 7 ||
		a.Entry.CorrelationID != e.CorrelationID || !a.Entry.At.Equal(now) {
		t.Fatalf("entry = %+v", a.Entry)
	}
	if len(a.Steps) != 1 || a.Steps[0].CorrelationID != e.CorrelationID {
		t.Fatalf("steps = %+v", a.Steps)
	}

	if err := s.ClearAction(42); err != nil {
		t.Fatalf("ClearAction: %v", err)
	}
	if _, err := s.GetAction(42); !errors.Is(err, ErrNotCached) {
		t.Fatalf("err after clear = %v, want ErrNotCached", err)
	}
	if err := s.ClearAction(42); err != nil {
		t.Fatalf("clearing twice should be a no-op: %v", err)
	}
}

func TestSaveAction_ReplacesPrior(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	s.SaveAction(42, ledger.NewEntry(model.ActionTaken, testActor, now), nil)
	s.SaveAction(42, ledger.NewEntry(model.ActionCompleted, testActor, now.Add(time.Second)), nil)

	a, err := s.GetAction(42)
	if err != nil {
		t.Fatal(err)
	}
	if a.Entry.Action != model.ActionCompleted {
		t.Fatalf("action = %s, want the replacing completed entry", a.Entry.Action)
	}
}

func TestListActions(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	s.SaveAction(3, ledger.NewEntry(model.ActionReleased, testActor, now), nil)
	s.SaveAction(1, ledger.NewEntry(model.ActionTaken, testActor, now), nil)

	actions, err := s.ListActions()
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 2 || actions[0].OrderID != 1 || actions[1].OrderID != 3 {
		t.Fatalf("got %+v, want orders 1 and 3 in order", actions)
	}
}

func TestListSnapshots_Ordered(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	s.SaveSnapshot(testOrder(5), now)
	s.SaveSnapshot(testOrder(2), now)

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || snaps[0].Order.ID != 2 || snaps[1].Order.ID != 5 {
		t.Fatalf("got %+v, want orders 2 then 5", snaps)
	}
}
