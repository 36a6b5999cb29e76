package main

import (
	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities",
	Aliases: []string{"caps"},
	Short:   "List the capabilities plans may use",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		jsonMode, _ := cmd.Flags().GetBool("json")
		watchMode, _ := cmd.Flags().GetBool("watch")

		return cli.ListCapabilities(cli.CapabilityOptions{
			ConfigPath: configPath,
			Debug:      debug,
			JSON:       jsonMode,
			Watch:      watchMode,
			Output:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)

	capabilitiesCmd.Flags().Bool("json", false, "Print capabilities as JSON")
	capabilitiesCmd.Flags().BoolP("watch", "w", false, "Reload and reprint when prompt documents change")
}

var capabilitiesCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Invoke one capability directly, outside any plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		jsonMode, _ := cmd.Flags().GetBool("json")
		callArgs, _ := cmd.Flags().GetString("args")

		return cli.CallCapability(cli.CallOptions{
			CapabilityOptions: cli.CapabilityOptions{
				ConfigPath: configPath,
				Debug:      debug,
				JSON:       jsonMode,
				Output:     cmd.OutOrStdout(),
			},
			Name: args[0],
			Args: callArgs,
		})
	},
}

func init() {
	capabilitiesCmd.AddCommand(capabilitiesCallCmd)

	capabilitiesCallCmd.Flags().String("args", "", "Arguments as a JSON object")
	capabilitiesCallCmd.Flags().Bool("json", false, "Print the output as JSON")
}
