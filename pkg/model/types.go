// Package model defines the core domain types for orderlens.
//
// Orderlens gives an employee a locally-optimistic view of an order that is
// being routed through sequential processing roles (picker → courier →
// delivered). The backend is the sole source of truth; the client applies
// each action to its local view immediately and reconciles against the
// canonical snapshot when it next arrives. Two ideas carry the design:
//
//   - The canonical snapshot: the server's authoritative order record, as
//     last fetched. The client never mutates it, only reads it.
//
//   - The optimistic overlay: the client's predicted view, derived from the
//     canonical snapshot plus the most recent unconfirmed local action. The
//     append-only status history doubles as a cheap change detector: its
//     length is a monotonic watermark, and growth beyond the last-seen
//     length means something happened server-side.
package model

import "time"

// Status is the processing status of an order. The set is closed; the
// client renders unknown statuses verbatim but never acts on them.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusConfirmed        Status = "CONFIRMED"
	StatusPicking          Status = "PICKING"
	StatusPacking          Status = "PACKING"
	StatusPackingCompleted Status = "PACKING_COMPLETED"
	StatusInDelivery       Status = "IN_DELIVERY"
	StatusDelivered        Status = "DELIVERED"
	StatusCompleted        Status = "COMPLETED"
	StatusCanceled         Status = "CANCELED"
)

// Terminal reports whether s is a completed status. A terminal order can
// never be re-opened by client-side overlay logic.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Role is an employee's processing role. The enumeration is closed:
// permission checks switch over it exhaustively, so an unhandled role is
// visible at the switch rather than silently falling through.
//
// Packer is gone from the action chain: picker completion advances an
// order straight to IN_DELIVERY. PACKING / PACKING_COMPLETED stay in the
// Status set because in-flight orders from older backends still report
// them, but no role produces them anymore.
type Role string

const (
	RolePicker   Role = "picker"
	RoleCourier  Role = "courier"
	RoleAdmin    Role = "admin"
	RoleObserver Role = "observer"
)

// ParseRole validates a role string from config or the wire.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePicker, RoleCourier, RoleAdmin, RoleObserver:
		return Role(s), true
	}
	return "", false
}

// NextStage returns the status a completed stage advances the order to for
// the given role. Roles that do not advance orders return false.
func (r Role) NextStage() (Status, bool) {
	switch r {
	case RolePicker:
		return StatusInDelivery, true
	case RoleCourier:
		return StatusDelivered, true
	}
	return "", false
}

// ActionKind identifies an optimistic local action.
type ActionKind string

const (
	ActionTaken     ActionKind = "taken"
	ActionReleased  ActionKind = "released"
	ActionCompleted ActionKind = "completed"
)

// ParseActionKind validates an action string from the CLI or the cache.
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionTaken, ActionReleased, ActionCompleted:
		return ActionKind(s), true
	}
	return "", false
}

// Actor is the employee operating this client.
type Actor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Admin bool   `json:"admin"`
}

// HistoryEntry is one record in an order's append-only status history.
//
// ActorID and CorrelationID are optional: older backends only embed the
// acting employee's display name in the free-text comment, which the
// reconciler falls back to matching by substring.
type HistoryEntry struct {
	Status        Status    `json:"status"`
	Comment       string    `json:"comment,omitempty"`
	ActorID       int64     `json:"actor_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderResource is the canonical order record as the backend returns it.
type OrderResource struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number,omitempty"`
	CustomerName  string         `json:"customer_name,omitempty"`
	TotalAmount   float64        `json:"total_amount,omitempty"`
	Status        Status         `json:"status"`
	AssignedTo    *int64         `json:"assigned_to,omitempty"`
	StatusHistory []HistoryEntry `json:"status_history"`
}

// HistoryLen returns the history length, treating a missing history as
// empty. A malformed snapshot must degrade, never panic.
func (o *OrderResource) HistoryLen() int {
	if o == nil {
		return 0
	}
	return len(o.StatusHistory)
}

// AssignedToID returns the assignee, if any.
func (o *OrderResource) AssignedToID() (int64, bool) {
	if o == nil || o.AssignedTo == nil {
		return 0, false
	}
	return *o.AssignedTo, true
}

// HistorySince returns the entries appended after the given watermark.
// Out-of-range watermarks clamp rather than panic: a server that rewrote
// history is treated as all-new.
func (o *OrderResource) HistorySince(watermark int) []HistoryEntry {
	if o == nil || watermark >= len(o.StatusHistory) {
		return nil
	}
	if watermark < 0 {
		watermark = 0
	}
	return o.StatusHistory[watermark:]
}

// SyntheticStep is a client-side stand-in for a history entry the server
// has not persisted yet. It carries enough metadata to be matched against
// the real entry once it appears, and suppressed.
type SyntheticStep struct {
	Kind          ActionKind `json:"kind"`
	Status        Status     `json:"status"`
	Role          Role       `json:"role"`
	ActorID       int64      `json:"actor_id"`
	ActorName     string     `json:"actor_name"`
	CorrelationID string     `json:"correlation_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OverlayState is the effective view the UI renders: the canonical
// snapshot with the most recent unconfirmed local action layered on top.
// It is derived state, recomputed on every snapshot or ledger change.
type OverlayState struct {
	OrderID        int64           `json:"order_id"`
	Status         Status          `json:"status"`
	AssignedToID   *int64          `json:"assigned_to_id,omitempty"`
	LastAction     ActionKind      `json:"last_action,omitempty"`
	ActionAt       time.Time       `json:"action_at,omitzero"`
	TemporarySteps []SyntheticStep `json:"temporary_steps,omitempty"`

	// LastKnownHistoryLength is the watermark: the canonical history
	// length at the time of the last sync.
	LastKnownHistoryLength int `json:"last_known_history_length"`
}

// AssignedTo reports whether the effective view assigns the order to the
// given employee.
func (v *OverlayState) AssignedTo(actorID int64) bool {
	return v != nil && v.AssignedToID != nil && *v.AssignedToID == actorID
}
