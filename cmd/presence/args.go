package main

import (
	"fmt"

	"github.com/spf13/cobra"

	clierrors "github.com/profilecard/presence/internal/errors"
)

func argsError(cmd *cobra.Command, format string, a ...any) error {
	return &clierrors.CLIError{
		Message: fmt.Sprintf("'%s' ", cmd.CommandPath()) + fmt.Sprintf(format, a...),
		Hint:    fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()),
		Code:    clierrors.ExitUsage,
	}
}

// noArgs rejects positional arguments. cobra.NoArgs reports them as an
// unknown command instead.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return argsError(cmd, "accepts no arguments")
	}

	return nil
}

// maxArgs allows up to n optional positional arguments.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return argsError(cmd, "accepts at most %d argument(s), got %d", n, len(args))
		}

		return nil
	}
}
