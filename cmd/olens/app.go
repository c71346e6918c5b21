package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mpetrenko/orderlens/pkg/config"
	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
	"github.com/mpetrenko/orderlens/pkg/remote"
	"github.com/mpetrenko/orderlens/pkg/session"
	"github.com/mpetrenko/orderlens/pkg/store"
)

// app holds shared state for all CLI subcommands. Each invocation is
// short-lived; the SQLite cache carries snapshots and pending actions
// across invocations so they behave as one continuous session.
type app struct {
	cfg   *config.Config
	store store.StoreInterface
	sess  *session.Session
}

// newApp loads the config, opens the cache, and restores the session.
func newApp() (*app, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("%w (run 'olens init' to create one)", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache dir: %w", err)
	}
	st, err := store.New(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache %q: %w", cfg.Cache.Path, err)
	}

	client, err := remote.NewClient(cfg.Backend.BaseURL,
		remote.WithToken(cfg.Backend.Token),
		remote.WithTimeout(cfg.BackendTimeout()),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		store: st,
		sess:  session.New(client, cfg.ToActor()),
	}
	a.restore()
	return a, nil
}

// Close prunes expired cache entries and closes the database.
func (a *app) Close() {
	_, _ = a.store.PruneSnapshots(a.cfg.CacheTTL(), time.Now().UTC())
	_ = a.store.Close()
}

// restore seeds the session from every cached snapshot so pending
// actions recorded by earlier invocations stay in effect.
func (a *app) restore() {
	snaps, err := a.store.ListSnapshots()
	if err != nil {
		return
	}
	for i := range snaps {
		snap := snaps[i].Order
		var entry *ledger.Entry
		var steps []model.SyntheticStep
		if sa, err := a.store.GetAction(snap.ID); err == nil {
			entry = &sa.Entry
			steps = sa.Steps
		}
		a.sess.Seed(&snap, entry, steps)
	}
}

// prepare makes sure the session holds a current view of the order:
// fresh cache is used as-is, anything else triggers a fetch. A failed
// fetch falls back to the cached view with a warning, so a dead network
// still shows the last known state.
func (a *app) prepare(ctx context.Context, orderID int64, forceRefresh bool) error {
	cached, cacheErr := a.store.GetSnapshot(orderID)
	if cacheErr == nil && !forceRefresh && !cached.Stale(a.cfg.CacheTTL(), time.Now().UTC()) {
		return nil
	}

	if _, err := a.sess.Refresh(ctx, orderID); err != nil {
		if cacheErr == nil {
			fmt.Fprintf(os.Stderr, "olens: backend unreachable, showing cached view from %s\n",
				cached.FetchedAt.Format("15:04:05"))
			return nil
		}
		return err
	}
	a.persist(orderID)
	return nil
}

// persist writes the order's canonical snapshot and outstanding action
// back to the cache. Cache write failures are reported but never fail
// the command; the backend already holds the truth.
func (a *app) persist(orderID int64) {
	if snap, ok := a.sess.Canonical(orderID); ok {
		if err := a.store.SaveSnapshot(snap, time.Now().UTC()); err != nil {
			fmt.Fprintf(os.Stderr, "olens: cache: %v\n", err)
		}
	}
	if e, ok := a.sess.Ledger().Get(orderID); ok {
		v, _ := a.sess.EffectiveView(orderID)
		if err := a.store.SaveAction(orderID, e, v.TemporarySteps); err != nil {
			fmt.Fprintf(os.Stderr, "olens: cache: %v\n", err)
		}
	} else if err := a.store.ClearAction(orderID); err != nil {
		fmt.Fprintf(os.Stderr, "olens: cache: %v\n", err)
	}
}

// actionCtx returns the context mutating commands run under.
func (a *app) actionCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.BackendTimeout()+5*time.Second)
}

// deniedExit maps an Apply error to the CLI exit code: contention and
// policy denials are exit 2, everything else is 1.
func deniedExit(err error) int {
	if errors.Is(err, remote.ErrConflict) || errors.Is(err, session.ErrNotPermitted) {
		return 2
	}
	return 1
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
