package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DisallowArguments is a Cobra arguments validator that disallows any
// arguments. Unlike Cobra's built-in NoArgs validator, it treats the first
// argument as an unknown command, matching the behavior of commands with
// subcommands.
func DisallowArguments(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.Errorf("unknown command: %s", arguments[0])
	}
	return nil
}

// Mainify is a small utility that wraps a non-standard Cobra entry point (one
// returning an error) and generates a standard Cobra entry point. It's useful
// for entry points to be able to rely on defer-based cleanup, which doesn't
// occur if the entry point terminates the process. This method allows the entry
// point to indicate an error while still performing cleanup.
func Mainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		if err := entry(command, arguments); err != nil {
			Fatal(err)
		}
	}
}
