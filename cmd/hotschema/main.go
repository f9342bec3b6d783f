package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/hotschema/cmd/hotschema/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		var exit *commands.ExitError
		if !errors.As(err, &exit) || !exit.Silent {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
