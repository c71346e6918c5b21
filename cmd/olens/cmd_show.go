package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mpetrenko/orderlens/pkg/ledger"
	"github.com/mpetrenko/orderlens/pkg/model"
)

func (a *app) cmdShow(args []string) int {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	refresh := flags.Bool("refresh", false, "force a backend fetch even if the cache is fresh")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: olens show <order_id> [--refresh] [--json]")
		return 1
	}
	orderID, err := parseOrderID(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "olens: %v\n", err)
		return 1
	}

	ctx, cancel := a.actionCtx()
	defer cancel()
	if err := a.prepare(ctx, orderID, *refresh); err != nil {
		fmt.Fprintf(os.Stderr, "olens: show: %v\n", err)
		return 1
	}

	view, ok := a.sess.EffectiveView(orderID)
	if !ok {
		fmt.Fprintf(os.Stderr, "olens: order %d not found\n", orderID)
		return 1
	}
	canonical, _ := a.sess.Canonical(orderID)

	if *jsonOut {
		out := map[string]interface{}{
			"effective": view,
			"canonical": canonical,
		}
		if e, ok := a.sess.Ledger().Get(orderID); ok {
			out["pending_action"] = e
		}
		printJSON(out)
		return 0
	}

	printOrder(a, canonical, view)
	return 0
}

// printOrder renders the effective view with canonical disagreements and
// pending activity called out.
func printOrder(a *app, canonical *model.OrderResource, view model.OverlayState) {
	header := fmt.Sprintf("order %d", view.OrderID)
	if canonical != nil && canonical.Number != "" {
		header += " " + canonical.Number
	}
	fmt.Println(header)
	if canonical != nil && canonical.CustomerName != "" {
		fmt.Printf("  customer: %s", canonical.CustomerName)
		if canonical.TotalAmount > 0 {
			fmt.Printf("  total: %.2f", canonical.TotalAmount)
		}
		fmt.Println()
	}

	statusLine := fmt.Sprintf("  status:   %s", view.Status)
	if canonical != nil && canonical.Status != view.Status {
		statusLine += fmt.Sprintf("  (server still %s)", canonical.Status)
	}
	fmt.Println(statusLine)

	fmt.Printf("  assigned: %s\n", assigneeLabel(a, view))

	if e, ok := a.sess.Ledger().Get(view.OrderID); ok {
		fmt.Printf("  pending:  %s %s\n", e.Action, humanSince(e.At))
	}

	if canonical != nil && len(canonical.StatusHistory) > 0 {
		fmt.Println("  history:")
		for _, h := range canonical.StatusHistory {
			line := fmt.Sprintf("    %s  %s", h.CreatedAt.Format("01-02 15:04"), h.Status)
			if h.Comment != "" {
				line += "  " + h.Comment
			}
			fmt.Println(line)
		}
	}
	for _, st := range view.TemporarySteps {
		fmt.Printf("    %s  %s  %s (%s, unconfirmed)\n",
			st.CreatedAt.Format("01-02 15:04"), st.Status, st.ActorName, st.Kind)
	}
}

func assigneeLabel(a *app, view model.OverlayState) string {
	if view.AssignedToID == nil {
		return "nobody"
	}
	if view.AssignedTo(a.sess.Actor().ID) {
		return fmt.Sprintf("you (%s)", a.sess.Actor().Name)
	}
	return fmt.Sprintf("employee %d", *view.AssignedToID)
}

func humanSince(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return t.Format("15:04:05")
}

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}

// pendingLabel summarizes an outstanding entry for list output.
func pendingLabel(e ledger.Entry) string {
	return fmt.Sprintf("%s by %s %s", e.Action, e.Actor.Name, humanSince(e.At))
}
