// Package session wires the overlay machinery into the surface a frontend
// consumes: effective views, action application with rollback, canonical
// refresh reconciliation, and permission checks.
//
// A Session is scoped to one actor and one client; it is not shared across
// devices. All state transitions are serialized by an internal mutex so
// the refresh feed and the caller's event loop can interleave safely. The
// session never mutates a canonical snapshot — callers hand ownership of
// each snapshot they feed in.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mpetrenko/orderlens/pkg/clock"
	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
	"github.com/mpetrenko/orderlens/pkg/overlay"
	"github.com/mpetrenko/orderlens/pkg/policy"
	"github.com/mpetrenko/orderlens/pkg/reconcile"
	"github.com/mpetrenko/orderlens/pkg/remote"
)

var (
	// ErrUnknownOrder: no canonical snapshot has been loaded for the id.
	ErrUnknownOrder = errors.New("order not loaded")

	// ErrNotPermitted: the policy denies the action for this actor
	// against the current effective view.
	ErrNotPermitted = errors.New("action not permitted")
)

// RemoteClient is the backend surface the session needs. *remote.Client
// satisfies it; tests inject fakes.
type RemoteClient interface {
	Fetch(ctx context.Context, orderID int64) (*model.OrderResource, error)
	Take(ctx context.Context, orderID int64, req remote.ActionRequest) (*model.OrderResource, error)
	Release(ctx context.Context, orderID int64, req remote.ActionRequest) (*model.OrderResource, error)
	CompleteStage(ctx context.Context, orderID int64, req remote.ActionRequest) (*model.OrderResource, error)
}

type orderState struct {
	canonical *model.OrderResource
	overlay   model.OverlayState
}

// Session tracks the effective view of every order this client has loaded.
type Session struct {
	remote RemoteClient
	actor  model.Actor
	clk    clock.Clock
	ledger *ledger.Ledger

	mu     sync.Mutex
	orders map[int64]*orderState
}

// Option customizes a Session.
type Option func(*Session)

// WithClock injects a time source (tests use a manual clock).
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clk = c }
}

// WithLedger injects a pre-seeded ledger, letting a CLI restore the
// outstanding action recorded by a previous invocation.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Session) { s.ledger = l }
}

// New builds a session for one actor.
func New(rc RemoteClient, actor model.Actor, opts ...Option) *Session {
	s := &Session{
		remote: rc,
		actor:  actor,
		clk:    clock.System{},
		ledger: ledger.New(),
		orders: make(map[int64]*orderState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Actor returns the employee this session acts as.
func (s *Session) Actor() model.Actor { return s.actor }

// Ledger exposes the underlying ledger so callers that persist session
// state across processes can read it back out.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Seed restores an order's state from persisted session data: the cached
// canonical snapshot, the outstanding entry (nil if none), and the
// temporary steps recorded with it.
func (s *Session) Seed(snap *model.OrderResource, entry *ledger.Entry, steps []model.SyntheticStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry != nil {
		s.ledger.Set(snap.ID, *entry)
	}
	prior := &model.OverlayState{TemporarySteps: steps}
	st := &orderState{canonical: snap}
	st.overlay = overlay.Project(snap, entry, prior)
	s.orders[snap.ID] = st
}

// EffectiveView returns the overlaid view for rendering.
func (s *Session) EffectiveView(orderID int64) (model.OverlayState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[orderID]
	if !ok {
		return model.OverlayState{}, false
	}
	return st.overlay, true
}

// Canonical returns the last synced canonical snapshot.
func (s *Session) Canonical(orderID int64) (*model.OrderResource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[orderID]
	if !ok {
		return nil, false
	}
	return st.canonical, true
}

// CanPerform evaluates the permission policy against the effective view.
func (s *Session) CanPerform(kind model.ActionKind, orderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[orderID]
	if !ok {
		return false
	}
	return policy.Allowed(kind, s.actor, &st.overlay)
}

// Refresh fetches the canonical snapshot and reconciles it in.
func (s *Session) Refresh(ctx context.Context, orderID int64) (model.OverlayState, error) {
	snap, err := s.remote.Fetch(ctx, orderID)
	if err != nil {
		return model.OverlayState{}, fmt.Errorf("refresh order %d: %w", orderID, err)
	}
	s.OnCanonicalRefresh(snap)
	v, _ := s.EffectiveView(orderID)
	return v, nil
}

// OnCanonicalRefresh feeds a fresh canonical snapshot into the
// reconciler. Conflicts detected here are routine multi-actor contention,
// never errors: the overlay is silently discarded and canonical truth
// rendered.
func (s *Session) OnCanonicalRefresh(snap *model.OrderResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.orders[snap.ID]
	if !ok {
		st = &orderState{}
		s.orders[snap.ID] = st
	}
	s.applySnapshotLocked(st, snap)
}

// applySnapshotLocked runs the reconciler and re-projects. Caller holds mu.
func (s *Session) applySnapshotLocked(st *orderState, snap *model.OrderResource) {
	var entryPtr *ledger.Entry
	if e, ok := s.ledger.Get(snap.ID); ok {
		entryPtr = &e
	}
	var prior *model.OverlayState
	if st.canonical != nil {
		prior = &st.overlay
	}

	d := reconcile.Decide(snap, st.canonical, prior, entryPtr, s.clk.Now())
	switch d.Outcome {
	case reconcile.Reset:
		s.ledger.Clear(snap.ID)
		entryPtr = nil
		prior = nil
	case reconcile.Confirm:
		pruned := st.overlay
		pruned.TemporarySteps = d.Remaining
		prior = &pruned
	case reconcile.Steady:
		// keep entry and prior as-is
	}

	st.canonical = snap
	st.overlay = overlay.Project(snap, entryPtr, prior)
}

// Apply performs an action: the optimistic entry and overlay are set
// first, the remote call runs, and on failure both are rolled back
// synchronously before the error is surfaced. No silent retry — the
// caller re-triggers a fresh attempt if they want one.
func (s *Session) Apply(ctx context.Context, orderID int64, kind model.ActionKind, comment string) (model.OverlayState, error) {
	s.mu.Lock()
	st, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return model.OverlayState{}, fmt.Errorf("apply %s: %w", kind, ErrUnknownOrder)
	}
	if !policy.Allowed(kind, s.actor, &st.overlay) {
		v := st.overlay
		s.mu.Unlock()
		return v, fmt.Errorf("apply %s to order %d: %w", kind, orderID, ErrNotPermitted)
	}

	prevOverlay := st.overlay
	prevEntry, hadEntry := s.ledger.Get(orderID)

	e := ledger.NewEntry(kind, s.actor, s.clk.Now())
	s.ledger.Set(orderID, e)
	st.overlay = overlay.Project(st.canonical, &e, &prevOverlay)
	s.mu.Unlock()

	req := remote.ActionRequest{
		Comment:       comment,
		ActorID:       s.actor.ID,
		ActorName:     s.actor.Name,
		Role:          s.actor.Role,
		CorrelationID: e.CorrelationID,
	}

	var snap *model.OrderResource
	var err error
	switch kind {
	case model.ActionTaken:
		snap, err = s.remote.Take(ctx, orderID, req)
	case model.ActionReleased:
		snap, err = s.remote.Release(ctx, orderID, req)
	case model.ActionCompleted:
		snap, err = s.remote.CompleteStage(ctx, orderID, req)
	default:
		err = fmt.Errorf("unknown action %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Roll back the entry, then re-project against whatever canonical
		// is current: a refresh may have landed while the call was out,
		// and restoring the saved overlay verbatim would shadow it.
		var entryPtr *ledger.Entry
		if hadEntry {
			s.ledger.Set(orderID, prevEntry)
			entryPtr = &prevEntry
		} else {
			s.ledger.Clear(orderID)
		}
		st.overlay = overlay.Project(st.canonical, entryPtr, &prevOverlay)
		return st.overlay, fmt.Errorf("apply %s to order %d: %w", kind, orderID, err)
	}

	if snap != nil {
		// The server's response is a canonical snapshot like any other;
		// run it through the reconciler so confirmation and lost races
		// take the same path as a background refresh.
		s.applySnapshotLocked(st, snap)
	}
	return st.overlay, nil
}
