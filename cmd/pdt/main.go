// Package main is the entry point for the pdt CLI.
package main

import "github.com/calebmorten/pwc-deal-tracker/cmd/pdt/cmd"

func main() {
	cmd.Execute()
}
