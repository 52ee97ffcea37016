package main

import (
	"os"

	"github.com/wangzhengdao/dxa-web-application-dotnet/cmd"
	"github.com/wangzhengdao/dxa-web-application-dotnet/cmd/resolve"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	resolveCmd := resolve.NewResolveCommand()
	rootCmd.AddCommand(resolveCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
