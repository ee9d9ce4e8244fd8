package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/bookmind/internal/cli"
	"github.com/cloo-solutions/bookmind/internal/cli/admin"
	"github.com/cloo-solutions/bookmind/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookmind",
		Short: "Conversational search over your bookmarks",
		Long: `bookmind answers natural-language questions about a bookmark collection by
combining keyword and semantic retrieval.

Server commands (serve, migrate, embed, import) read BOOKMIND_* environment
variables; BOOKMIND_DATABASE_URL is required.

Client commands (chat, search, similar, stats) talk to a running server:
  BOOKMIND_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	cli.AddGroups(rootCmd)
	rootCmd.AddCommand(cli.InGroup(cli.GroupServer,
		admin.ServeCmd(),
		admin.MigrateCmd(),
		admin.EmbedCmd(),
		admin.ImportCmd(),
	)...)
	rootCmd.AddCommand(cli.InGroup(cli.GroupClient,
		client.ChatCmd(),
		client.SearchCmd(),
		client.SimilarCmd(),
		client.StatsCmd(),
		client.ConfigCmd(),
	)...)

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
