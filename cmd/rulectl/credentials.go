package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type credential struct {
	Tenant      string `json:"tenant"`
	TokenOnFile bool   `json:"tokenOnFile"`
	TokenHint   string `json:"tokenHint,omitempty"`
	SenderKey   string `json:"senderKey,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

var (
	credentialToken     string
	credentialSenderKey string
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the tenant's messaging credentials",
}

var credentialsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show whether a messaging token is on file",
	RunE:  runCredentialsGet,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the tenant's messaging API token",
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the tenant's messaging credentials",
	RunE:  runCredentialsDelete,
}

func init() {
	credentialsSetCmd.Flags().StringVar(&credentialToken, "token", "", "Messaging provider API token (required)")
	credentialsSetCmd.Flags().StringVar(&credentialSenderKey, "sender-key", "", "KakaoTalk sender profile key")

	credentialsCmd.AddCommand(credentialsGetCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}

func runCredentialsGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var cred credential
	if err := client.getJSON("/credentials", &cred); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(cred)
	}

	headers := []string{"Tenant", "Token", "Sender Key", "Updated"}
	token := "none"
	if cred.TokenOnFile {
		token = cred.TokenHint
	}
	printTable(headers, [][]string{{cred.Tenant, token, cred.SenderKey, cred.UpdatedAt}})
	return nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	if credentialToken == "" {
		return fmt.Errorf("--token is required")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	body := map[string]string{"apiToken": credentialToken}
	if credentialSenderKey != "" {
		body["senderKey"] = credentialSenderKey
	}

	var cred credential
	if err := client.putJSON("/credentials", body, &cred); err != nil {
		return err
	}

	fmt.Printf("Stored credentials for %s (token %s)\n", cred.Tenant, cred.TokenHint)
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.deleteJSON("/credentials", nil); err != nil {
		return err
	}

	fmt.Println("Credentials deleted")
	return nil
}
