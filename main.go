// Package main is the entry point for the yeti service.
package main

import (
	"fmt"
	"os"

	"yeti/bootstrap"
	"yeti/cmd"

	"github.com/spf13/cobra"
)

// subcommands maps the first argument to its CLI command
var subcommands = map[string]func() *cobra.Command{
	"ttp":    cmd.NewTTPCmd,
	"groups": cmd.NewGroupsCmd,
	"token":  cmd.NewTokenCmd,
}

// run initializes and starts the API server. YETI_CONFIG_FILE selects an
// explicit config file.
func run() error {
	app, err := bootstrap.NewApp(os.Getenv("YETI_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

func main() {
	if len(os.Args) > 1 {
		if newCmd, ok := subcommands[os.Args[1]]; ok {
			// The command already knows its own name
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

			if err := newCmd().Execute(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
