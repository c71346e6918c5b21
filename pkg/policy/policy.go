// Package policy answers "may this actor perform this action on this
// order" as pure predicates over the effective (overlaid) view.
//
// Callers must project the overlay first: evaluating permissions against
// raw canonical fields would re-enable buttons the optimistic view has
// already consumed. Admins see identical views to employees but never get
// actionable permissions — an explicit business rule, which is why every
// predicate takes the admin flag rather than inferring it from role
// absence.
package policy

import "github.com/mpetrenko/orderlens/pkg/model"

// CanTake reports whether an actor with the given role may take an order
// whose effective status is s.
func CanTake(role model.Role, s model.Status, isAdmin bool) bool {
	if isAdmin || s.Terminal() {
		return false
	}
	switch role {
	case model.RolePicker:
		return s == model.StatusPending
	case model.RoleCourier:
		return s == model.StatusInDelivery
	case model.RoleAdmin, model.RoleObserver:
		return false
	default:
		return false
	}
}

// CanCompleteOrRelease reports whether the effective assignee may complete
// the current stage or release the order. Only the assignee may act, and
// only while the effective status is an actionable in-progress one.
func CanCompleteOrRelease(isAssignee bool, s model.Status, isAdmin bool) bool {
	if isAdmin || !isAssignee {
		return false
	}
	return actionableInProgress(s)
}

// actionableInProgress lists the statuses during which a single actor
// works the order.
func actionableInProgress(s model.Status) bool {
	switch s {
	case model.StatusPending, model.StatusConfirmed, model.StatusPicking,
		model.StatusPacking, model.StatusPackingCompleted, model.StatusInDelivery:
		return true
	}
	return false
}

// Allowed dispatches an action kind to the matching predicate, evaluated
// against the effective view.
func Allowed(kind model.ActionKind, actor model.Actor, view *model.OverlayState) bool {
	if view == nil || view.Status.Terminal() {
		return false
	}
	switch kind {
	case model.ActionTaken:
		return CanTake(actor.Role, view.Status, actor.Admin)
	case model.ActionReleased, model.ActionCompleted:
		return CanCompleteOrRelease(view.AssignedTo(actor.ID), view.Status, actor.Admin)
	default:
		return false
	}
}
