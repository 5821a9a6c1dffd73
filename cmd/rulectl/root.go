package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	tenant    string
)

var rootCmd = &cobra.Command{
	Use:   "rulectl",
	Short: "CLI for the delivery automation server",
	Long: `rulectl manages spreadsheet automation rules, delivery history, and
messaging credentials on an automation server.

All commands operate on a single tenant, selected with --tenant or the
AUTOMATION_TENANT environment variable.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Automation server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "Tenant account id (default: from AUTOMATION_TENANT env)")

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(deliveriesCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedTenant returns the effective tenant.
// Priority: --tenant flag > AUTOMATION_TENANT env var.
func resolvedTenant() string {
	if tenant != "" {
		return tenant
	}
	return os.Getenv("AUTOMATION_TENANT")
}
