// Package main is the entry point for the refprice CLI.
package main

import (
	"os"

	"medicare-refprice/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
