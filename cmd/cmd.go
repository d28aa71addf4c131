// Package cmd provides the root command and shared helpers for subcommands.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appctx "github.com/ordana/payments/libs/context"
	"github.com/ordana/payments/libs/logging"
)

var (
	// RootCmd is the base command
	RootCmd = &cobra.Command{
		Use:   "payments",
		Short: "payments transaction gateway service",
	}
)

// Execute runs the root command with build information on the context.
func Execute(version, commit, buildTime string) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, appctx.VersionCTXKey, version)
	ctx = context.WithValue(ctx, appctx.CommitCTXKey, commit)
	ctx = context.WithValue(ctx, appctx.BuildTimeCTXKey, buildTime)
	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.GetString("environment"))

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Msg("command encountered an error")
		os.Exit(1)
	}
}

// Perform a task and log the result
func Perform(action string, fn func() error) {
	if err := fn(); err != nil {
		logger := logging.FromContext(context.Background())
		logger.Fatal().Err(err).Msgf("failed to %s", action)
	}
}

// Must helper to make sure there is no errors
func Must(err error) {
	if err != nil {
		logger := logging.FromContext(context.Background())
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
}

func init() {
	RootCmd.PersistentFlags().String("environment", "local",
		"the environment the service is running in")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	RootCmd.PersistentFlags().Bool("debug", false,
		"enable debug logging")
	Must(viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug")))
	Must(viper.BindEnv("debug", "DEBUG"))
}
