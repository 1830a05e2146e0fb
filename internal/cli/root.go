// Package cli implements the importctl operator tool. Most commands are thin
// clients of the import service API; seed and validate run locally.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Caseflow import engine CLI",
	Long: `importctl is the command-line interface for the caseflow import engine.

Upload and preview CSV imports, manage field mappings, trigger Airtable
syncs, download templates and exports, and generate sample data.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8086", "import service base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for the management API")
}
