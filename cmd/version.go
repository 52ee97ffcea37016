package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/build"
)

// NewVersionCommand returns the command to get the dxa version.
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the dxa version",
		Long:  "Return the dxa version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "dxa version %s date %s commit id %s\n", build.Version, build.Date, build.Commit)
	return err
}
