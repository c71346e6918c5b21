package overlay

import (
	"testing"
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

var (
	picker  = model.Actor{ID: 7, Name: "Alice Picker", Role: model.RolePicker}
	courier = model.Actor{ID: 9, Name: "Bob Courier", Role: model.RoleCourier}
	now     = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func pendingOrder() *model.OrderResource {
	return &model.OrderResource{
		ID:     42,
		Status: model.StatusPending,
		StatusHistory: []model.HistoryEntry{
			{Status: model.StatusPending, CreatedAt: now.Add(-time.Hour)},
		},
	}
}

// With no ledger entry the projection mirrors the canonical snapshot.
func TestProject_NoEntry_MirrorsCanonical(t *testing.T) {
	assignee := int64(3)
	o := pendingOrder()
	o.AssignedTo = &assignee

	v := Project(o, nil, nil)
	if v.OrderID != 42 || v.Status != model.StatusPending {
		t.Fatalf("got %+v", v)
	}
	if v.AssignedToID == nil || *v.AssignedToID != 3 {
		t.Fatalf("assignee = %v, want 3", v.AssignedToID)
	}
	if len(v.TemporarySteps) != 0 || v.LastAction != "" {
		t.Fatalf("steady state must carry no optimistic fields: %+v", v)
	}
	if v.LastKnownHistoryLength != 1 {
		t.Fatalf("watermark = %d, want 1", v.LastKnownHistoryLength)
	}
}

func TestProject_Taken_AssignsToActor(t *testing.T) {
	e := ledger.NewEntry(model.ActionTaken, picker, now)
	v := Project(pendingOrder(), &e, nil)

	if !v.AssignedTo(picker.ID) {
		t.Fatalf("effective assignee = %v, want %d", v.AssignedToID, picker.ID)
	}
	if v.Status != model.StatusPending {
		t.Fatalf("taking must not change status, got %s", v.Status)
	}
	if len(v.TemporarySteps) != 1 {
		t.Fatalf("want one synthetic step, got %d", len(v.TemporarySteps))
	}
	step := v.TemporarySteps[0]
	if step.Kind != model.ActionTaken || step.Status != model.StatusPending ||
		step.Role != model.RolePicker || step.ActorName != picker.Name {
		t.Fatalf("step = %+v", step)
	}
	if step.CorrelationID != e.CorrelationID {
		t.Fatal("step must carry the entry's correlation ID")
	}
}

func TestProject_Completed_AdvancesStagePerRole(t *testing.T) {
	// Picker completion skips the packing stage entirely.
	e := ledger.NewEntry(model.ActionCompleted, picker, now)
	v := Project(pendingOrder(), &e, nil)
	if v.Status != model.StatusInDelivery {
		t.Fatalf("picker completion: status = %s, want IN_DELIVERY", v.Status)
	}

	o := pendingOrder()
	o.Status = model.StatusInDelivery
	e = ledger.NewEntry(model.ActionCompleted, courier, now)
	v = Project(o, &e, nil)
	if v.Status != model.StatusDelivered {
		t.Fatalf("courier completion: status = %s, want DELIVERED", v.Status)
	}
	if len(v.TemporarySteps) != 1 || v.TemporarySteps[0].Status != model.StatusDelivered {
		t.Fatalf("completed step should report the advanced status: %+v", v.TemporarySteps)
	}
}

func TestProject_Released_ClearsAssignment(t *testing.T) {
	assignee := picker.ID
	o := pendingOrder()
	o.AssignedTo = &assignee

	e := ledger.NewEntry(model.ActionReleased, picker, now)
	v := Project(o, &e, nil)
	if v.AssignedToID != nil {
		t.Fatalf("released order must appear unassigned, got %v", *v.AssignedToID)
	}
	if len(v.TemporarySteps) != 0 {
		t.Fatal("release is a negative action, no synthetic step")
	}
	if v.LastAction != model.ActionReleased {
		t.Fatalf("last action = %s", v.LastAction)
	}
}

func TestProject_TerminalStatusShortCircuits(t *testing.T) {
	for _, st := range []model.Status{model.StatusDelivered, model.StatusCompleted, model.StatusCanceled} {
		o := pendingOrder()
		o.Status = st
		e := ledger.NewEntry(model.ActionTaken, picker, now)
		v := Project(o, &e, nil)
		if v.AssignedToID != nil || len(v.TemporarySteps) != 0 || v.LastAction != "" {
			t.Fatalf("%s: terminal order picked up overlay effects: %+v", st, v)
		}
	}
}

func TestProject_StepsAccumulateAcrossActions(t *testing.T) {
	take := ledger.NewEntry(model.ActionTaken, picker, now)
	v1 := Project(pendingOrder(), &take, nil)

	complete := ledger.NewEntry(model.ActionCompleted, picker, now.Add(2*time.Second))
	v2 := Project(pendingOrder(), &complete, &v1)

	if len(v2.TemporarySteps) != 2 {
		t.Fatalf("want started + completed steps, got %d", len(v2.TemporarySteps))
	}
	if v2.TemporarySteps[0].Kind != model.ActionTaken || v2.TemporarySteps[1].Kind != model.ActionCompleted {
		t.Fatalf("steps out of order: %+v", v2.TemporarySteps)
	}
}

func TestProject_Idempotent(t *testing.T) {
	e := ledger.NewEntry(model.ActionTaken, picker, now)
	v1 := Project(pendingOrder(), &e, nil)
	v2 := Project(pendingOrder(), &e, &v1)
	if len(v2.TemporarySteps) != 1 {
		t.Fatalf("re-projecting the same entry duplicated steps: %d", len(v2.TemporarySteps))
	}
}

// Once the canonical history echoes a step's correlation ID, the step
// stays suppressed even while its ledger entry is still live.
func TestProject_StepStaysSuppressedOnceHistoryCatchesUp(t *testing.T) {
	e := ledger.NewEntry(model.ActionTaken, picker, now)

	o := pendingOrder()
	o.StatusHistory = append(o.StatusHistory, model.HistoryEntry{
		Status:        model.StatusPending,
		CorrelationID: e.CorrelationID,
		CreatedAt:     now,
	})

	v := Project(o, &e, nil)
	if !v.AssignedTo(picker.ID) {
		t.Fatal("assignment overlay should still apply")
	}
	if len(v.TemporarySteps) != 0 {
		t.Fatalf("step re-appeared after history caught up: %+v", v.TemporarySteps)
	}
}

func TestProject_DoesNotAliasPriorSteps(t *testing.T) {
	take := ledger.NewEntry(model.ActionTaken, picker, now)
	v1 := Project(pendingOrder(), &take, nil)

	complete := ledger.NewEntry(model.ActionCompleted, picker, now)
	v2 := Project(pendingOrder(), &complete, &v1)
	v2.TemporarySteps[0].ActorName = "mutated"

	if v1.TemporarySteps[0].ActorName != picker.Name {
		t.Fatal("projection aliased the prior overlay's step slice")
	}
}
