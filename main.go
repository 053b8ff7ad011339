// Package main provides the entry point for the shelfscan command.
package main

import (
	"fmt"
	"os"

	"shelfscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
