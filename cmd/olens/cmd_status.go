package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func (a *app) cmdStatus(args []string) int {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	snaps, err := a.store.ListSnapshots()
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: status: %v\n", err)
		return 1
	}
	actions, err := a.store.ListActions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: status: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"actor":           a.sess.Actor(),
			"cached_orders":   snaps,
			"pending_actions": actions,
		})
		return 0
	}

	actor := a.sess.Actor()
	fmt.Printf("acting as %s (%s, id %d)\n", actor.Name, actor.Role, actor.ID)

	if len(snaps) == 0 {
		fmt.Println("cache: empty")
		return 0
	}
	fmt.Println("cached orders:")
	now := time.Now().UTC()
	for _, c := range snaps {
		view, ok := a.sess.EffectiveView(c.Order.ID)
		status := c.Order.Status
		if ok {
			status = view.Status
		}
		freshness := "fresh"
		if c.Stale(a.cfg.CacheTTL(), now) {
			freshness = "stale"
		}
		fmt.Printf("  %-8d %-10s %-18s fetched=%s (%s)\n",
			c.Order.ID, c.Order.Number, status,
			c.FetchedAt.Format("15:04:05"), freshness)
	}

	if len(actions) > 0 {
		fmt.Println("pending actions:")
		for _, sa := range actions {
			fmt.Printf("  %-8d %s\n", sa.OrderID, pendingLabel(sa.Entry))
		}
	}
	return 0
}
