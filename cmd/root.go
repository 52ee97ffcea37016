// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with DXA, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DXA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/dxa", "$HOME/.dxa", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "dxa",
		Short: "Resolve pages, entities and navigation from a content service",
		Long: `Resolve pages, entities and navigation from a content service.

dxa builds typed view models from the model data published to a content service, caching them
per localization and invalidating them when the content they were built from changes.`,
		SilenceUsage: true,
	}
}
