package base

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
)

// FlagSet wraps a flag.FlagSet to render help text for CLI commands.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet returns a FlagSet wrapping f. Output is discarded so parse
// errors are reported by the command instead.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(&bytes.Buffer{})
	return &FlagSet{FlagSet: f}
}

// Help returns the formatted usage of all defined flags.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")

	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s", fl.Name)
		if fl.DefValue != "" {
			fmt.Fprintf(&b, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&b, "\n    %s\n", fl.Usage)
	})

	return strings.TrimRight(b.String(), "\n")
}
