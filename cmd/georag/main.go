// Command georag is a thin CLI over the engine: ingest GeoJSON, build the
// index, and run retrieval queries (SPEC_FULL.md's CLI surface is ambient
// scaffolding, not a specified product).
package main

import (
	"fmt"
	"os"

	"github.com/georag/georag/cmd/georag/cmd"
	"github.com/georag/georag/internal/errs"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "error:", err)

	if errs.KindOf(err) == errs.InvalidInput {
		return 2
	}
	return 1
}
