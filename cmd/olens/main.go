// Command olens is the orderlens CLI — an optimistic, offline-tolerant
// console for employees working orders through the picking and delivery
// stages.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("olens", version)
		return
	case "init":
		// init writes the config file, so it must run without one.
		os.Exit(cmdInit(os.Args[2:]))
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	switch os.Args[1] {
	case "show":
		os.Exit(a.cmdShow(os.Args[2:]))
	case "take":
		os.Exit(a.cmdAction(os.Args[2:], "take"))
	case "release":
		os.Exit(a.cmdAction(os.Args[2:], "release"))
	case "complete":
		os.Exit(a.cmdAction(os.Args[2:], "complete"))
	case "status":
		os.Exit(a.cmdStatus(os.Args[2:]))
	case "watch":
		os.Exit(a.cmdWatch(os.Args[2:]))

	default:
		fmt.Fprintf(os.Stderr, "olens: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'olens --help' for usage.")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`olens — optimistic order console

Actions apply to your local view immediately and reconcile against the
backend's canonical record. Snapshots and pending actions persist in a
local SQLite cache, so views survive offline stretches.

Usage:
  olens <command> [flags]

Setup:
  init [--path FILE]        Write a starter config file

Commands:
  show <order_id>           Effective view of an order (cached if fresh)
  take <order_id>           Take the order for your role's stage
  release <order_id>        Release the order back to the pool
  complete <order_id>       Complete your stage, advancing the order
  status                    Cached orders and pending actions
  watch <order_id>...       Live terminal view with action keys

Environment:
  ORDERLENS_CONFIG   Config file path (default: user config dir)
  ORDERLENS_ACTOR    Actor id override (shared config, several employees)

All commands support --json for machine-readable output.
Actions support --comment for the history note.

Exit codes:
  0  success
  1  error
  2  action denied (conflict or not permitted)
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "olens: "+format+"\n", args...)
	os.Exit(1)
}
