package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type delivery struct {
	ID                string `json:"id"`
	RuleID            string `json:"ruleId"`
	RuleName          string `json:"ruleName,omitempty"`
	Channel           string `json:"channel"`
	Recipient         string `json:"recipient,omitempty"`
	ColumnName        string `json:"columnName,omitempty"`
	OldValue          string `json:"oldValue,omitempty"`
	NewValue          string `json:"newValue,omitempty"`
	Success           bool   `json:"success"`
	FellBack          bool   `json:"fellBack,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Error             string `json:"error,omitempty"`
	CreatedAt         string `json:"createdAt"`
}

type deliveryList struct {
	Deliveries    []delivery `json:"deliveries"`
	NextPageToken string     `json:"nextPageToken"`
}

var (
	deliveriesRuleID    string
	deliveriesChannel   string
	deliveriesFailed    bool
	deliveriesPageSize  int
	deliveriesPageToken string
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Inspect delivery history",
}

var deliveriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent delivery attempts, newest first",
	RunE:  runDeliveriesList,
}

func init() {
	f := deliveriesListCmd.Flags()
	f.StringVar(&deliveriesRuleID, "rule", "", "Filter by rule id")
	f.StringVar(&deliveriesChannel, "channel", "", "Filter by channel (sms or chat)")
	f.BoolVar(&deliveriesFailed, "failed", false, "Show only failed attempts")
	f.IntVar(&deliveriesPageSize, "page-size", 20, "Page size")
	f.StringVar(&deliveriesPageToken, "page-token", "", "Continue from a previous nextPageToken")

	deliveriesCmd.AddCommand(deliveriesListCmd)
}

func runDeliveriesList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	q := url.Values{}
	if deliveriesRuleID != "" {
		q.Set("ruleId", deliveriesRuleID)
	}
	if deliveriesChannel != "" {
		q.Set("channel", deliveriesChannel)
	}
	if deliveriesFailed {
		q.Set("success", "false")
	}
	q.Set("pageSize", strconv.Itoa(deliveriesPageSize))
	if deliveriesPageToken != "" {
		q.Set("pageToken", deliveriesPageToken)
	}

	var list deliveryList
	if err := client.getJSON("/deliveries?"+q.Encode(), &list); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(list)
	}

	headers := []string{"Time", "Rule", "Channel", "Recipient", "Success", "Error"}
	rows := make([][]string, 0, len(list.Deliveries))
	for _, d := range list.Deliveries {
		name := d.RuleName
		if name == "" {
			name = d.RuleID
		}
		ch := d.Channel
		if d.FellBack {
			ch += " (fallback)"
		}
		rows = append(rows, []string{
			d.CreatedAt,
			truncate(name, 30),
			ch,
			d.Recipient,
			fmt.Sprintf("%t", d.Success),
			truncate(d.Error, 50),
		})
	}
	printTable(headers, rows)

	if list.NextPageToken != "" {
		fmt.Printf("\nNext page: --page-token %s\n", list.NextPageToken)
	}
	return nil
}
