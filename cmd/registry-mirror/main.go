// Package main is the entry point for the registry mirror.
package main

import (
	"os"

	// Embedded zone database so status.timezone works on minimal images.
	_ "time/tzdata"

	"github.com/stacklok/registry-mirror/cmd/registry-mirror/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
