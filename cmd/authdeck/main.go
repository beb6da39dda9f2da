// Package main is the entry point for authdeck.
package main

import (
	"os"

	"github.com/Dicklesworthstone/authdeck/cmd/authdeck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
