package main

import (
	"github.com/aretw0/conductor/internal/cli"
	"github.com/spf13/cobra"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive goal session",
	Long: `Reads one goal per line and runs each against the same session, so later
goals can refer to earlier answers. Type 'exit' or 'quit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")

		return cli.RunChat(cli.ChatOptions{
			ConfigPath: configPath,
			Debug:      debug,
			SessionID:  sessionID,
			Headless:   headless,
			Input:      cmd.InOrStdin(),
			Output:     cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session ID to resume (default: a new session)")
	chatCmd.Flags().Bool("headless", false, "Run in headless mode (no banner, no prompts, plain output)")
}
