// Package reconcile decides, on every canonical refresh, whether the
// client's optimistic overlay is being confirmed by its own recent action
// or invalidated by an external change.
//
// The history length is the watermark: the status history is append-only,
// so growth beyond the last-seen length is a robust, cheap signal that
// something happened server-side — much cheaper than deep-diffing the
// history. The grace window exists because the client's own mutating call
// and the next refresh race: too short and self-caused confirmation looks
// external, too long and a genuine external race (another courier grabbing
// a released order) is masked. That trade-off is deliberate.
package reconcile

import (
	"strings"
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

const (
	// GraceWindow is how long after a local action a matching canonical
	// change is presumed to be confirmation rather than an external event.
	GraceWindow = 5 * time.Second

	// RetakeWindow is how long a released entry stays live without
	// canonical confirmation before it expires, restoring take
	// eligibility.
	RetakeWindow = 30 * time.Second
)

// Outcome is the reconciler's verdict for one refresh.
type Outcome int

const (
	// Steady: nothing changed server-side; keep the overlay as-is.
	Steady Outcome = iota

	// Confirm: the canonical change is attributable to the client's own
	// recent action. Keep the ledger entry, advance the watermark,
	// suppress the matched temporary steps.
	Confirm

	// Reset: the canonical change is external (another actor, a
	// server-side process, or an unattributable change). Clear the
	// ledger entry and adopt canonical truth wholesale. This is a
	// routine outcome of multi-actor contention, not an error.
	Reset
)

// Decision is the verdict plus the temporary steps that survive it.
type Decision struct {
	Outcome Outcome

	// Remaining holds the temporary steps still unmatched by real
	// history entries. Meaningful only for Confirm.
	Remaining []model.SyntheticStep
}

// Decide evaluates a fresh canonical snapshot against the last synced one,
// the prior overlay, and the outstanding ledger entry (nil when none).
func Decide(snap, lastSynced *model.OrderResource, prior *model.OverlayState, entry *ledger.Entry, now time.Time) Decision {
	if entry == nil {
		// No overlay to protect; the caller simply re-projects canonical.
		return Decision{Outcome: Steady}
	}

	// A released entry past the re-take window is stale: drop it so the
	// actor can take the order again even if confirmation never arrived.
	if entry.Action == model.ActionReleased && now.Sub(entry.At) >= RetakeWindow {
		return Decision{Outcome: Reset}
	}

	watermark := 0
	if prior != nil {
		watermark = prior.LastKnownHistoryLength
	}

	// Malformed or rewritten snapshot: history shrank below the
	// watermark. Prefer discarding an optimistic overlay over showing a
	// wrong one.
	if snap.HistoryLen() < watermark {
		return Decision{Outcome: Reset}
	}

	fresh := now.Sub(entry.At) < GraceWindow

	if snap.HistoryLen() > watermark {
		grown := snap.HistorySince(watermark)
		if fresh && allAttributable(grown, entry, prior) {
			return Decision{
				Outcome:   Confirm,
				Remaining: suppressMatched(priorSteps(prior), grown),
			}
		}
		return Decision{Outcome: Reset}
	}

	// No history growth, but assignment or status may still have drifted
	// from the last synced values (some backends update the record before
	// appending history). The same own-action test applies.
	if drifted(snap, lastSynced) {
		if fresh && reflectsEntry(snap, entry) {
			return Decision{Outcome: Confirm, Remaining: priorSteps(prior)}
		}
		return Decision{Outcome: Reset}
	}

	// Quiet snapshot: once the grace window has elapsed and canonical
	// reflects the action, the entry has served its purpose. Clearing it
	// here completes the ledger lifecycle; the projected view is
	// identical either way.
	if !fresh && reflectsEntry(snap, entry) {
		return Decision{Outcome: Reset}
	}

	return Decision{Outcome: Steady}
}

func priorSteps(prior *model.OverlayState) []model.SyntheticStep {
	if prior == nil {
		return nil
	}
	return prior.TemporarySteps
}

// allAttributable reports whether every new history entry traces back to
// the acting employee's outstanding or recently-applied actions.
func allAttributable(grown []model.HistoryEntry, entry *ledger.Entry, prior *model.OverlayState) bool {
	for _, h := range grown {
		if !attributable(h, entry, priorSteps(prior)) {
			return false
		}
	}
	return true
}

// attributable matches one history entry to the client's own activity.
// Correlation IDs win when the backend echoes them; an explicit actor ID
// is next; the last resort is the legacy shim — history comments embed the
// actor's display name as free text. The shim is fragile by nature and
// kept only for backends that predate correlation IDs.
func attributable(h model.HistoryEntry, entry *ledger.Entry, steps []model.SyntheticStep) bool {
	if h.CorrelationID != "" {
		if h.CorrelationID == entry.CorrelationID {
			return true
		}
		for _, s := range steps {
			if s.CorrelationID == h.CorrelationID {
				return true
			}
		}
		return false
	}
	if h.ActorID != 0 {
		return h.ActorID == entry.Actor.ID
	}
	return entry.Actor.Name != "" && strings.Contains(h.Comment, entry.Actor.Name)
}

// suppressMatched drops every temporary step that a real history entry now
// covers.
func suppressMatched(steps []model.SyntheticStep, grown []model.HistoryEntry) []model.SyntheticStep {
	if len(steps) == 0 {
		return nil
	}
	var remaining []model.SyntheticStep
	for _, s := range steps {
		matched := false
		for _, h := range grown {
			if stepMatches(s, h) {
				matched = true
				break
			}
		}
		if !matched {
			remaining = append(remaining, s)
		}
	}
	return remaining
}

func stepMatches(s model.SyntheticStep, h model.HistoryEntry) bool {
	if h.CorrelationID != "" {
		return h.CorrelationID == s.CorrelationID
	}
	return h.Status == s.Status && s.ActorName != "" && strings.Contains(h.Comment, s.ActorName)
}

// drifted reports whether assignment or status changed since the last
// synced snapshot.
func drifted(snap, lastSynced *model.OrderResource) bool {
	if lastSynced == nil {
		return false
	}
	newID, newOK := snap.AssignedToID()
	oldID, oldOK := lastSynced.AssignedToID()
	if newOK != oldOK || (newOK && newID != oldID) {
		return true
	}
	return snap.Status != lastSynced.Status
}

// reflectsEntry reports whether the snapshot now shows the state the
// outstanding action predicted.
func reflectsEntry(snap *model.OrderResource, entry *ledger.Entry) bool {
	switch entry.Action {
	case model.ActionTaken:
		id, ok := snap.AssignedToID()
		return ok && id == entry.Actor.ID
	case model.ActionReleased:
		_, ok := snap.AssignedToID()
		return !ok
	case model.ActionCompleted:
		next, ok := entry.Actor.Role.NextStage()
		return ok && snap.Status == next
	}
	return false
}
