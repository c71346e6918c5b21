// Package store persists client-session state in SQLite.
//
// The CLI is a short-lived process, so the database is what makes
// consecutive invocations behave as one client session: it carries the
// cached canonical snapshots (with fetch timestamps for TTL invalidation),
// the outstanding optimistic action per order, and the temporary steps
// recorded with it. The cache is per device and never shared — it is a
// convenience layer under the overlay, not a second source of truth.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotCached is returned when no row exists for the order.
var ErrNotCached = errors.New("not cached")

// CachedSnapshot is a canonical snapshot plus when it was fetched.
type CachedSnapshot struct {
	Order     model.OrderResource `json:"order"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Stale reports whether the snapshot has outlived the TTL.
func (c *CachedSnapshot) Stale(ttl time.Duration, now time.Time) bool {
	return now.Sub(c.FetchedAt) >= ttl
}

// SavedAction is a persisted ledger entry with its temporary steps.
type SavedAction struct {
	OrderID int64                 `json:"order_id"`
	Entry   ledger.Entry          `json:"entry"`
	Steps   []model.SyntheticStep `json:"steps,omitempty"`
}

// Store manages all SQLite operations with WAL mode for concurrent access
// (two terminal windows running olens against the same cache is normal).
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		order_id    INTEGER PRIMARY KEY,
		payload     TEXT NOT NULL,
		history_len INTEGER NOT NULL,
		fetched_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		order_id       INTEGER PRIMARY KEY,
		kind           TEXT NOT NULL,
		actor_id       INTEGER NOT NULL,
		actor_name     TEXT NOT NULL,
		actor_role     TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		applied_at     TEXT NOT NULL,
		steps          TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_fetched ON snapshots(fetched_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// SaveSnapshot upserts the cached canonical record for an order.
func (s *Store) SaveSnapshot(o *model.OrderResource, fetchedAt time.Time) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return withRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO snapshots (order_id, payload, history_len, fetched_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(order_id) DO UPDATE SET
			   payload = excluded.payload,
			   history_len = excluded.history_len,
			   fetched_at = excluded.fetched_at`,
			o.ID, string(payload), o.HistoryLen(), fetchedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// GetSnapshot returns the cached record for an order, or ErrNotCached.
func (s *Store) GetSnapshot(orderID int64) (*CachedSnapshot, error) {
	var payload, fetched string
	err := s.db.QueryRow(
		`SELECT payload, fetched_at FROM snapshots WHERE order_id = ?`, orderID,
	).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(payload, fetched)
}

// ListSnapshots returns all cached records ordered by order id.
func (s *Store) ListSnapshots() ([]CachedSnapshot, error) {
	rows, err := s.db.Query(`SELECT payload, fetched_at FROM snapshots ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CachedSnapshot
	for rows.Next() {
		var payload, fetched string
		if err := rows.Scan(&payload, &fetched); err != nil {
			return nil, err
		}
		c, err := decodeSnapshot(payload, fetched)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes cached records older than the TTL. Orders with an
// outstanding action are kept regardless: the action's context must
// survive until it reconciles.
func (s *Store) PruneSnapshots(ttl time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-ttl).UTC().Format(time.RFC3339Nano)
	var n int64
	err := withRetry(func() error {
		res, err := s.db.Exec(
			`DELETE FROM snapshots
			 WHERE fetched_at < ?
			   AND order_id NOT IN (SELECT order_id FROM actions)`, cutoff)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func decodeSnapshot(payload, fetched string) (*CachedSnapshot, error) {
	var c CachedSnapshot
	if err := json.Unmarshal([]byte(payload), &c.Order); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}
	c.FetchedAt = t
	return &c, nil
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// SaveAction upserts the outstanding optimistic action for an order.
func (s *Store) SaveAction(orderID int64, e ledger.Entry, steps []model.SyntheticStep) error {
	if steps == nil {
		steps = []model.SyntheticStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	return withRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO actions (order_id, kind, actor_id, actor_name, actor_role, correlation_id, applied_at, steps)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(order_id) DO UPDATE SET
			   kind = excluded.kind,
			   actor_id = excluded.actor_id,
			   actor_name = excluded.actor_name,
			   actor_role = excluded.actor_role,
			   correlation_id = excluded.correlation_id,
			   applied_at = excluded.applied_at,
			   steps = excluded.steps`,
			orderID, string(e.Action), e.Actor.ID, e.Actor.Name, string(e.Actor.Role),
			e.CorrelationID, e.At.UTC().Format(time.RFC3339Nano), string(stepsJSON),
		)
		return err
	})
}

// GetAction returns the outstanding action for an order, or ErrNotCached.
func (s *Store) GetAction(orderID int64) (*SavedAction, error) {
	row := s.db.QueryRow(
		`SELECT kind, actor_id, actor_name, actor_role, correlation_id, applied_at, steps
		 FROM actions WHERE order_id = ?`, orderID)
	a, err := scanAction(orderID, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	return a, err
}

// ListActions returns all outstanding actions ordered by order id.
func (s *Store) ListActions() ([]SavedAction, error) {
	rows, err := s.db.Query(
		`SELECT order_id, kind, actor_id, actor_name, actor_role, correlation_id, applied_at, steps
		 FROM actions ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedAction
	for rows.Next() {
		var (
			orderID                               int64
			kind, name, role, corrID, at, stepsJS string
			actorID                               int64
		)
		if err := rows.Scan(&orderID, &kind, &actorID, &name, &role, &corrID, &at, &stepsJS); err != nil {
			return nil, err
		}
		a, err := buildAction(orderID, kind, actorID, name, role, corrID, at, stepsJS)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ClearAction removes the outstanding action for an order. Idempotent.
func (s *Store) ClearAction(orderID int64) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM actions WHERE order_id = ?`, orderID)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(orderID int64, row rowScanner) (*SavedAction, error) {
	var (
		kind, name, role, corrID, at, stepsJS string
		actorID                               int64
	)
	if err := row.Scan(&kind, &actorID, &name, &role, &corrID, &at, &stepsJS); err != nil {
		return nil, err
	}
	return buildAction(orderID, kind, actorID, name, role, corrID, at, stepsJS)
}

func buildAction(orderID int64, kind string, actorID int64, name, role, corrID, at, stepsJS string) (*SavedAction, error) {
	action, ok := model.ParseActionKind(kind)
	if !ok {
		return nil, fmt.Errorf("order %d: unknown action kind %q", orderID, kind)
	}
	appliedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("order %d: parse applied_at: %w", orderID, err)
	}
	var steps []model.SyntheticStep
	if err := json.Unmarshal([]byte(stepsJS), &steps); err != nil {
		return nil, fmt.Errorf("order %d: decode steps: %w", orderID, err)
	}
	return &SavedAction{
		OrderID: orderID,
		Entry: ledger.Entry{
			Action:        action,
			Actor:         model.Actor{ID: actorID, Name: name, Role: model.Role(role)},
			CorrelationID: corrID,
			At:            appliedAt,
		},
		Steps: steps,
	}, nil
}
