// Package cli holds the messenger-connector commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"messenger-connector/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "messenger-connector",
	Short: "Facebook Messenger assistant for a tailoring workshop",
	Long: `messenger-connector answers Facebook Messenger conversations with a
language model, collects tailor applications and product orders, and keeps
the conversation state in Airtable (or MongoDB).

Running it without a sub-command starts the webhook server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
}

// Execute runs the command line until ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
