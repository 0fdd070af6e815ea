// Package main provides the lineage command.
package main

import (
	"os"

	"github.com/leapstack-labs/lineage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
