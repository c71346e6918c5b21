// iface.go defines the StoreInterface for dependency injection.
//
// The concrete *Store type satisfies this interface. The cmd layer
// accepts StoreInterface instead of *Store so tests can inject fakes
// without touching the filesystem.
package store

import (
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

// StoreInterface defines the full set of store operations.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Snapshots ---

	// SaveSnapshot upserts the cached canonical record for an order.
	SaveSnapshot(o *model.OrderResource, fetchedAt time.Time) error

	// GetSnapshot returns the cached record, or ErrNotCached.
	GetSnapshot(orderID int64) (*CachedSnapshot, error)

	// ListSnapshots returns all cached records ordered by order id.
	ListSnapshots() ([]CachedSnapshot, error)

	// PruneSnapshots deletes expired records without outstanding actions.
	PruneSnapshots(ttl time.Duration, now time.Time) (int64, error)

	// --- Actions ---

	// SaveAction upserts the outstanding optimistic action for an order.
	SaveAction(orderID int64, e ledger.Entry, steps []model.SyntheticStep) error

	// GetAction returns the outstanding action, or ErrNotCached.
	GetAction(orderID int64) (*SavedAction, error)

	// ListActions returns all outstanding actions ordered by order id.
	ListActions() ([]SavedAction, error)

	// ClearAction removes the outstanding action. Idempotent.
	ClearAction(orderID int64) error
}

var _ StoreInterface = (*Store)(nil)
