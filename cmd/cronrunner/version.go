package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/cronrunner/internal/version"
)

// newVersionCmd prints the version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
