// Package main provides the worker command that runs the customer analytics
// pipeline, in full or stage by stage.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
