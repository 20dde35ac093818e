// Package main is the entry point for snippetd.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to read configuration, create the dependencies (logger, store
// connections) and start the requested process. All actual logic lives in internal/.
//
// One binary, several processes:
//
//	snippetd serve      HTTP API
//	snippetd reconcile  drains the reconciliation queue
//	snippetd init       creates the schema and the search index
//	snippetd token      mints a bearer token for an existing user
//	snippetd dead       lists dead-lettered work items
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "snippetd",
		Usage:   "code snippet storage with full-text search",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file, overridden by the environment",
				EnvVars: []string{"SNIPPETS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			reconcileCommand(),
			initCommand(),
			tokenCommand(),
			deadCommand(),
		},
	}
}
