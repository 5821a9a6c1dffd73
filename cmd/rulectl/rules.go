package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type ruleCondition struct {
	WatchedColumn string `json:"watchedColumn"`
	Operator      string `json:"operator"`
	TriggerValue  string `json:"triggerValue"`
}

type ruleAction struct {
	Channel         string `json:"channel"`
	SenderNumber    string `json:"senderNumber"`
	RecipientColumn string `json:"recipientColumn"`
	MessageTemplate string `json:"messageTemplate"`
}

type rule struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Enabled          bool          `json:"enabled"`
	ScopeSpreadsheet string        `json:"scopeSpreadsheet,omitempty"`
	ScopeDate        string        `json:"scopeDate,omitempty"`
	Condition        ruleCondition `json:"condition"`
	Action           ruleAction    `json:"action"`
	CreatedAt        string        `json:"createdAt"`
	UpdatedAt        string        `json:"updatedAt"`
}

type ruleList struct {
	Rules     []rule `json:"rules"`
	TotalSize int    `json:"totalSize"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant's rules",
	RunE:  runRulesList,
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <rule-id>",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesGet,
}

var (
	createName             string
	createDisabled         bool
	createScopeSpreadsheet string
	createScopeDate        string
	createColumn           string
	createOperator         string
	createValue            string
	createChannel          string
	createSender           string
	createRecipientColumn  string
	createTemplate         string
)

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a rule",
	Example: `  rulectl rules create --name "delivered alert" \
    --column status --operator changes_to --value delivered \
    --channel chat --sender 0212345678 --recipient-column phone \
    --template "#{customer}, order #{order} was delivered."`,
	RunE: runRulesCreate,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], false) },
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

func init() {
	f := rulesCreateCmd.Flags()
	f.StringVar(&createName, "name", "", "Rule name (required)")
	f.BoolVar(&createDisabled, "disabled", false, "Create the rule disabled")
	f.StringVar(&createScopeSpreadsheet, "spreadsheet", "", "Restrict matching to one spreadsheet")
	f.StringVar(&createScopeDate, "date", "", "Restrict matching to one date-named sheet")
	f.StringVar(&createColumn, "column", "", "Watched column name (required)")
	f.StringVar(&createOperator, "operator", "equals", "Comparison operator: equals, contains, changes_to")
	f.StringVar(&createValue, "value", "", "Trigger value (required)")
	f.StringVar(&createChannel, "channel", "sms", "Delivery channel: sms or chat")
	f.StringVar(&createSender, "sender", "", "Registered sender phone number (required)")
	f.StringVar(&createRecipientColumn, "recipient-column", "", "Row column holding the recipient phone number (required)")
	f.StringVar(&createTemplate, "template", "", "Message template with #{column} placeholders (required)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var list ruleList
	if err := client.getJSON("/rules", &list); err != nil {
		return err
	}

	if outputFmt != "table" {
		return printOutput(list)
	}

	headers := []string{"ID", "Name", "Enabled", "Condition", "Channel", "Template"}
	rows := make([][]string, 0, len(list.Rules))
	for _, r := range list.Rules {
		cond := fmt.Sprintf("%s %s %q", r.Condition.WatchedColumn, r.Condition.Operator, r.Condition.TriggerValue)
		rows = append(rows, []string{
			r.ID,
			r.Name,
			fmt.Sprintf("%t", r.Enabled),
			cond,
			r.Action.Channel,
			truncate(r.Action.MessageTemplate, 40),
		})
	}
	printTable(headers, rows)
	return nil
}

func runRulesGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var r rule
	if err := client.getJSON("/rules/"+args[0], &r); err != nil {
		return err
	}

	if outputFmt == "table" {
		outputFmt = "json"
	}
	return printOutput(r)
}

func runRulesCreate(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	enabled := !createDisabled
	body := map[string]any{
		"name":    createName,
		"enabled": enabled,
		"condition": ruleCondition{
			WatchedColumn: createColumn,
			Operator:      createOperator,
			TriggerValue:  createValue,
		},
		"action": ruleAction{
			Channel:         createChannel,
			SenderNumber:    createSender,
			RecipientColumn: createRecipientColumn,
			MessageTemplate: createTemplate,
		},
	}
	if createScopeSpreadsheet != "" {
		body["scopeSpreadsheet"] = createScopeSpreadsheet
	}
	if createScopeDate != "" {
		body["scopeDate"] = createScopeDate
	}

	var created rule
	if err := client.postJSON("/rules", body, &created); err != nil {
		return err
	}

	fmt.Printf("Created rule %s (%s)\n", created.ID, created.Name)
	return nil
}

func setRuleEnabled(ruleID string, enabled bool) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var updated rule
	if err := client.patchJSON("/rules/"+ruleID, map[string]any{"enabled": enabled}, &updated); err != nil {
		return err
	}

	state := "disabled"
	if updated.Enabled {
		state = "enabled"
	}
	fmt.Printf("Rule %s is now %s\n", updated.ID, state)
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.deleteJSON("/rules/"+args[0], nil); err != nil {
		return err
	}

	fmt.Printf("Deleted rule %s\n", args[0])
	return nil
}
