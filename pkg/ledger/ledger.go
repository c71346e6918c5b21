// Package ledger implements the local action ledger: per order, the single
// most recent optimistic action that has not yet been confirmed by a
// canonical snapshot.
//
// The ledger models at most one outstanding action per order — setting a
// new action silently replaces any prior one, matching the
// one-actor-per-stage business rule. Entries are ephemeral: callers clear
// them on confirmed reconciliation or on rollback, because a stale entry
// would permanently mask canonical state.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpetrenko/orderlens/pkg/model"
)

// Entry records one optimistic action.
type Entry struct {
	Action        model.ActionKind `json:"action"`
	Actor         model.Actor      `json:"actor"`
	CorrelationID string           `json:"correlation_id"`
	At            time.Time        `json:"at"`
}

// NewEntry builds an entry for an action performed now, with a fresh
// correlation ID the remote call carries so the server can echo it back in
// the history entry it persists.
func NewEntry(action model.ActionKind, actor model.Actor, now time.Time) Entry {
	return Entry{
		Action:        action,
		Actor:         actor,
		CorrelationID: uuid.NewString(),
		At:            now,
	}
}

// Ledger is a keyed store of outstanding entries. Safe for concurrent use:
// the refresh feed and the caller's event loop both touch it.
type Ledger struct {
	mu      sync.Mutex
	entries map[int64]Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[int64]Entry)}
}

// Set records the outstanding entry for an order, replacing any prior one.
func (l *Ledger) Set(orderID int64, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[orderID] = e
}

// Get returns the outstanding entry for an order, if any.
func (l *Ledger) Get(orderID int64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[orderID]
	return e, ok
}

// Clear removes the outstanding entry for an order. Clearing an absent
// entry is a no-op.
func (l *Ledger) Clear(orderID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, orderID)
}
