package main

import (
	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored sessions",
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		return cli.ListSessions(cli.SessionOptions{ConfigPath: configPath, Debug: debug, Output: cmd.OutOrStdout()})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		jsonMode, _ := cmd.Flags().GetBool("json")
		return cli.ShowSession(cli.SessionOptions{ConfigPath: configPath, Debug: debug, Output: cmd.OutOrStdout()}, args[0], jsonMode)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionShowCmd)

	sessionShowCmd.Flags().Bool("json", false, "Print turns as JSON")
}
