package policy

import (
	"testing"

	"github.com/mpetrenko/orderlens/pkg/model"
)

func TestCanTake(t *testing.T) {
	cases := []struct {
		name    string
		role    model.Role
		status  model.Status
		isAdmin bool
		expect  bool
	}{
		{"picker takes pending", model.RolePicker, model.StatusPending, false, true},
		{"picker cannot take in-delivery", model.RolePicker, model.StatusInDelivery, false, false},
		{"courier takes in-delivery", model.RoleCourier, model.StatusInDelivery, false, true},
		{"courier cannot take pending", model.RoleCourier, model.StatusPending, false, false},
		{"admin never takes", model.RolePicker, model.StatusPending, true, false},
		{"admin role never takes", model.RoleAdmin, model.StatusPending, false, false},
		{"observer never takes", model.RoleObserver, model.StatusPending, false, false},
		{"terminal denies picker", model.RolePicker, model.StatusDelivered, false, false},
		{"terminal denies courier", model.RoleCourier, model.StatusCanceled, false, false},
		{"unknown role denies", model.Role("packer"), model.StatusPending, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTake(tc.role, tc.status, tc.isAdmin); got != tc.expect {
				t.Fatalf("CanTake(%s, %s, %v) = %v, want %v", tc.role, tc.status, tc.isAdmin, got, tc.expect)
			}
		})
	}
}

func TestCanCompleteOrRelease(t *testing.T) {
	cases := []struct {
		name       string
		isAssignee bool
		status     model.Status
		isAdmin    bool
		expect     bool
	}{
		{"assignee in pending", true, model.StatusPending, false, true},
		{"assignee in picking", true, model.StatusPicking, false, true},
		{"assignee in delivery", true, model.StatusInDelivery, false, true},
		{"assignee in legacy packing", true, model.StatusPacking, false, true},
		{"non-assignee denied", false, model.StatusPicking, false, false},
		{"admin denied even as assignee", true, model.StatusPicking, true, false},
		{"terminal denied", true, model.StatusDelivered, false, false},
		{"canceled denied", true, model.StatusCanceled, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanCompleteOrRelease(tc.isAssignee, tc.status, tc.isAdmin); got != tc.expect {
				t.Fatalf("got %v, want %v", got, tc.expect)
			}
		})
	}
}

// Terminal statuses deny every action regardless of ledger or assignment.
func TestAllowed_TerminalLocksEverything(t *testing.T) {
	actor := model.Actor{ID: 7, Role: model.RolePicker}
	id := actor.ID
	for _, st := range []model.Status{model.StatusDelivered, model.StatusCompleted, model.StatusCanceled} {
		view := &model.OverlayState{Status: st, AssignedToID: &id}
		for _, kind := range []model.ActionKind{model.ActionTaken, model.ActionReleased, model.ActionCompleted} {
			if Allowed(kind, actor, view) {
				t.Fatalf("%s allowed on terminal status %s", kind, st)
			}
		}
	}
}

func TestAllowed_Dispatch(t *testing.T) {
	picker := model.Actor{ID: 7, Role: model.RolePicker}
	view := &model.OverlayState{Status: model.StatusPending}

	if !Allowed(model.ActionTaken, picker, view) {
		t.Fatal("picker should be able to take a pending order")
	}
	if Allowed(model.ActionCompleted, picker, view) {
		t.Fatal("cannot complete an order not assigned to you")
	}

	id := picker.ID
	view.AssignedToID = &id
	if !Allowed(model.ActionCompleted, picker, view) || !Allowed(model.ActionReleased, picker, view) {
		t.Fatal("assignee should be able to complete and release")
	}

	if Allowed(model.ActionTaken, picker, nil) {
		t.Fatal("nil view must deny")
	}
	if Allowed(model.ActionKind("bogus"), picker, view) {
		t.Fatal("unknown action must deny")
	}
}

// An admin viewing a pending unassigned order gets no actions, ever.
func TestAllowed_AdminIsObserverOnly(t *testing.T) {
	admin := model.Actor{ID: 1, Name: "Root", Role: model.RoleAdmin, Admin: true}
	view := &model.OverlayState{Status: model.StatusPending}
	for _, kind := range []model.ActionKind{model.ActionTaken, model.ActionReleased, model.ActionCompleted} {
		if Allowed(kind, admin, view) {
			t.Fatalf("admin allowed %s", kind)
		}
	}
}
