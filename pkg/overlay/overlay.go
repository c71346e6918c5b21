// Package overlay implements the overlay state reducer: a pure projection
// of the canonical order snapshot, the outstanding ledger entry, and the
// prior overlay into the effective view the UI renders.
//
// The reducer never mutates its inputs and never performs I/O. Callers run
// it on every snapshot or ledger change; permission checks evaluate the
// result, never the raw canonical fields.
package overlay

import (
	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

// Project combines the canonical snapshot, the outstanding ledger entry
// (nil when none), and the prior overlay (nil on first projection) into
// the effective view.
//
// With no entry the projection mirrors the canonical snapshot exactly —
// the steady state. A terminal canonical status short-circuits every
// overlay effect: a completed order can never be re-opened locally.
func Project(canonical *model.OrderResource, entry *ledger.Entry, prior *model.OverlayState) model.OverlayState {
	out := model.OverlayState{
		OrderID:                canonical.ID,
		Status:                 canonical.Status,
		LastKnownHistoryLength: canonical.HistoryLen(),
	}
	if id, ok := canonical.AssignedToID(); ok {
		out.AssignedToID = &id
	}

	if entry == nil || canonical.Status.Terminal() {
		return out
	}

	steps := carrySteps(canonical, prior)

	switch entry.Action {
	case model.ActionTaken:
		// Taking does not change the processing status, only the
		// assignment.
		id := entry.Actor.ID
		out.AssignedToID = &id
		steps = appendStep(canonical, steps, model.SyntheticStep{
			Kind:          model.ActionTaken,
			Status:        canonical.Status,
			Role:          entry.Actor.Role,
			ActorID:       entry.Actor.ID,
			ActorName:     entry.Actor.Name,
			CorrelationID: entry.CorrelationID,
			CreatedAt:     entry.At,
		})

	case model.ActionCompleted:
		next, ok := entry.Actor.Role.NextStage()
		if ok {
			out.Status = next
		}
		steps = appendStep(canonical, steps, model.SyntheticStep{
			Kind:          model.ActionCompleted,
			Status:        out.Status,
			Role:          entry.Actor.Role,
			ActorID:       entry.Actor.ID,
			ActorName:     entry.Actor.Name,
			CorrelationID: entry.CorrelationID,
			CreatedAt:     entry.At,
		})

	case model.ActionReleased:
		// Release is a negative action: the order immediately appears
		// available again, with no synthetic step.
		out.AssignedToID = nil
	}

	out.LastAction = entry.Action
	out.ActionAt = entry.At
	out.TemporarySteps = steps
	return out
}

// carrySteps copies the prior overlay's temporary steps so consecutive
// actions accumulate (take then complete yields two steps) without
// aliasing the prior slice. Steps the canonical history already covers are
// dropped: they stay suppressed once matched.
func carrySteps(canonical *model.OrderResource, prior *model.OverlayState) []model.SyntheticStep {
	if prior == nil || len(prior.TemporarySteps) == 0 {
		return nil
	}
	var steps []model.SyntheticStep
	for _, s := range prior.TemporarySteps {
		if !covered(canonical, s.CorrelationID) {
			steps = append(steps, s)
		}
	}
	return steps
}

// appendStep adds a step unless one with the same correlation ID and kind
// is already present, or the canonical history has caught up with it.
// Re-projecting the same entry must be idempotent.
func appendStep(canonical *model.OrderResource, steps []model.SyntheticStep, s model.SyntheticStep) []model.SyntheticStep {
	if covered(canonical, s.CorrelationID) {
		return steps
	}
	for _, existing := range steps {
		if existing.CorrelationID == s.CorrelationID && existing.Kind == s.Kind {
			return steps
		}
	}
	return append(steps, s)
}

// covered reports whether canonical history already holds the entry this
// correlation ID predicted. Only an explicit correlation match counts —
// the fuzzier legacy matching happens during reconciliation, scoped to
// freshly-grown entries, where a false positive cannot hide a brand-new
// step.
func covered(canonical *model.OrderResource, correlationID string) bool {
	if correlationID == "" {
		return false
	}
	for _, h := range canonical.StatusHistory {
		if h.CorrelationID == correlationID {
			return true
		}
	}
	return false
}
