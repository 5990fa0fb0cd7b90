package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vidtube/backend/internal/app"
)

const usage = `usage: vidtube <command>

commands:
  serve            start the HTTP API
  migrate [up]     create the MongoDB indexes
  migrate status   list catalogued indexes and whether they exist
  seed <name>      load seeds/<name>_seed.json`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vidtube:", err)
		os.Exit(1)
	}
}
