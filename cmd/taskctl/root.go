package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		apiURL string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "taskctl",
		Short: "Taskctl is the TaskPilot admin and inspection tool",
	}

	cmd.PersistentFlags().StringVar(&apiURL, "api", envOr("TASKPILOT_API_URL", "http://localhost:8788"), "API base URL")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TASKPILOT_TOKEN"), "API bearer token")

	cmd.AddCommand(
		newMigrateCmd(),
		newParseCmd(),
		newProjectsCmd(&apiURL, &token),
		newSyncCmd(&apiURL, &token),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
