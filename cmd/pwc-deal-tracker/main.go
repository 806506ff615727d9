// Package main is the entry point for the pwc-deal-tracker server.
package main

import (
	"os"

	"github.com/calebmorten/pwc-deal-tracker/cmd/pwc-deal-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
