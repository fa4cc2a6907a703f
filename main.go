package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ask/pkg/config"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ekaya-ask",
		Short:         "Ask questions about a SQLite or CSV dataset in plain language.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadFile(configPath, Version)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newMCPCmd(load),
		newAskCmd(load),
		newSchemaCmd(load),
		newCacheCmd(load),
		newConfigCmd(load),
	)
	return rootCmd
}

type configLoader func() (*config.Config, error)
