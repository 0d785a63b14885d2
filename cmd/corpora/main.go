package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oak-labs/corpora/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "corpora",
		Short: "Corpora CLI - Local knowledge base ingestion and retrieval",
		Long: `Corpora CLI provides commands to manage knowledge bases served by a
corporad instance.

Environment variables:
  CORPORA_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	rootCmd.AddCommand(client.BasesCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ItemCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
