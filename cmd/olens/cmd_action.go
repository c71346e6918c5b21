package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mpetrenko/orderlens/pkg/model"
)

// cmdAction runs take, release and complete; they differ only in the
// action kind handed to the session.
func (a *app) cmdAction(args []string, name string) int {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	comment := flags.String("comment", "", "history note sent with the action")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: olens %s <order_id> [--comment TEXT] [--json]\n", name)
		return 1
	}
	orderID, err := parseOrderID(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: %v\n", err)
		return 1
	}

	kind := actionKind(name)

	ctx, cancel := a.actionCtx()
	defer cancel()

	// Reconcile against the latest canonical state before acting, so the
	// policy check sees contention that happened since the last sync.
	if err := a.prepare(ctx, orderID, true); err != nil {
		fmt.Fprintf(os.Stderr, "olens: %s: %v\n", name, err)
		return 1
	}

	view, err := a.sess.Apply(ctx, orderID, kind, *comment)
	a.persist(orderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: %s order %d: %v\n", name, orderID, err)
		return deniedExit(err)
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"applied":   kind,
			"effective": view,
		})
	} else {
		canonical, _ := a.sess.Canonical(orderID)
		fmt.Printf("%s order %d\n", pastTense(name), orderID)
		printOrder(a, canonical, view)
	}
	return 0
}

func actionKind(name string) model.ActionKind {
	switch name {
	case "take":
		return model.ActionTaken
	case "release":
		return model.ActionReleased
	default:
		return model.ActionCompleted
	}
}

func pastTense(name string) string {
	switch name {
	case "take":
		return "took"
	case "release":
		return "released"
	default:
		return "completed stage on"
	}
}
