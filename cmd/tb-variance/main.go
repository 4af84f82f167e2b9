// Package main is the entry point for the tb-variance CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/tb-variance/cmd/tb-variance/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
