package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/config"
	"github.com/uniportal/internship-portal/internal/logger"
)

const appName = "portalctl"

// Actual version can be specified in build command.
var version = "unknown"

var (
	// Used for flags.
	cfgFile  string
	debug    bool
	jsonLogs bool

	rootCmd = &cobra.Command{
		Use:          appName,
		Short:        "portalctl operates the internship portal's database and matching engine",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is portal.yaml in current directory)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", appName, version)
		},
	})
}

// setup loads the configuration and builds a logger. Flags given on the
// command line win over the config file and environment.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Log.Debug = debug
	}
	if flags.Changed("json") {
		cfg.Log.JSON = jsonLogs
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}
