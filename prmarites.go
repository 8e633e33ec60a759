package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/prmarites/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "prmarites",
		Usage:   "Relay GitHub PR review activity to Slack DMs, and thread replies back",
		Version: version,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
