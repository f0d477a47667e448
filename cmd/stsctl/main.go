// Command stsctl drives a running trading server from the command line.
//
// Sign in once and export the printed token as CLIENT_TOKEN so later
// commands reuse the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"stock-trading-sim-go/internal/client"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/logger"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range userCommands {
		commander.Register(c, "trading")
	}
	for _, c := range adminCommands {
		commander.Register(c, "admin")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// newClient builds a client from ./configs and the environment.
func newClient() (*client.Client, error) {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger("warn", "console")
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client, log), nil
}

// fail prints err and returns the failure status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}
