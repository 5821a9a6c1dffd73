package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	// Health needs no tenant, so skip the tenant-scoped client.
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(serverURL + "/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	fmt.Printf("Server at %s is healthy\n", serverURL)
	return nil
}
