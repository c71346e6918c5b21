package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mpetrenko/orderlens/pkg/config"
)

func cmdInit(args []string) int {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	path := flags.String("path", "", "config file path (default: ORDERLENS_CONFIG or user config dir)")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	dest := *path
	if dest == "" {
		dest = config.DefaultPath()
	}
	if err := config.WriteSkeleton(dest); err != nil {
		fmt.Fprintf(os.Stderr, "olens: init: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", dest)
	fmt.Println("Fill in backend.base_url and the actor section, then run 'olens status'.")
	return 0
}
