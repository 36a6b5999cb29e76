package main

import (
	"strings"

	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a single goal",
	Long: `Generates a plan for the goal, executes it and prints the final output.
With --session the goal sees the session's earlier turns and is appended to it on success.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		sessionID, _ := cmd.Flags().GetString("session")
		inputs, _ := cmd.Flags().GetString("inputs")
		jsonMode, _ := cmd.Flags().GetBool("json")

		return cli.RunGoal(cli.RunOptions{
			ConfigPath: configPath,
			Debug:      debug,
			Goal:       strings.Join(args, " "),
			SessionID:  sessionID,
			Inputs:     inputs,
			JSON:       jsonMode,
			Output:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID providing conversation history")
	runCmd.Flags().String("inputs", "", "Plan inputs as a JSON object")
	runCmd.Flags().Bool("json", false, "Print the full run result as JSON")
}
