package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor turns natural-language goals into executed plans",
	Long: `Conductor asks a reasoning service to plan a goal as a sequence of capability
calls, validates the plan against the capability registry and executes it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (default: ./conductor.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

func globalFlags(cmd *cobra.Command) (configPath string, debug bool) {
	configPath, _ = cmd.Flags().GetString("config")
	debug, _ = cmd.Flags().GetBool("debug")
	return configPath, debug
}
