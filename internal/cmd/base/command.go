// Package base contains the shared pieces of signbridge CLI commands.
package base

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by every signbridge command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui
}

// NewCommand returns a Command using log and ui.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
	}
}
