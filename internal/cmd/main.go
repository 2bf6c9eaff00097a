package cmd

import (
	"bufio"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/signbridge/internal/version"
)

// Main runs the CLI with the given arguments and returns the exit code.
// Running the binary without a subcommand starts the server.
func Main(args []string) int {
	cliName := args[0]

	level := hclog.Info
	if val, ok := os.LookupEnv("SIGNBRIDGE_LOG_LEVEL"); ok {
		if l := hclog.LevelFromString(val); l != hclog.NoLevel {
			level = l
		}
	}
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "signbridge",
		Level: level,
	})

	switch {
	case len(args) == 1:
		args = append(args, "server")
	case len(args) == 2 && (args[1] == "-version" || args[1] == "-v"):
		args = []string{cliName, "version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	initCommands(log, ui)

	c := &cli.CLI{
		Name:       "signbridge",
		Args:       args[1:],
		Version:    version.Version,
		Commands:   Commands,
		HelpWriter: os.Stdout,
	}

	exitCode, err := c.Run()
	if err != nil {
		log.Error("error running command", "error", err)
		return 1
	}

	return exitCode
}
