package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/message"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/metrics"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/rules"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/solapi"
)

// Sender delivers one outbound message. Implemented by the SOLAPI client;
// faked in tests.
type Sender interface {
	Send(ctx context.Context, token string, msg solapi.Message) (string, error)
}

// Request carries one matched rule's dispatch inputs. Token is the tenant's
// messaging bearer token; empty means auth is unavailable and the dispatch
// fails without touching the provider.
type Request struct {
	Rule       *rules.AutomationRule
	RowData    map[string]string
	Token      string
	ColumnName string
	OldValue   string
	NewValue   string
}

// Dispatcher sends the action side of matched rules.
type Dispatcher struct {
	sender   Sender
	attempts *AttemptStore // nil disables attempt recording
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. timeout bounds each dispatch
// (fallback included) so one hanging provider call cannot stall the rest of
// a webhook batch.
func NewDispatcher(sender Sender, attempts *AttemptStore, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:   sender,
		attempts: attempts,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch executes one matched rule's action against one row. Success is
// true only when the final send landed; a chat send that failed but whose
// SMS fallback succeeded is a success. Failures are logged and recorded,
// never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	rule := req.Rule
	start := time.Now()

	res := Result{
		Tenant:     rule.Tenant,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		ColumnName: req.ColumnName,
		OldValue:   req.OldValue,
		NewValue:   req.NewValue,
		Timestamp:  start.Format(time.RFC3339),
	}
	attempt := &DeliveryAttempt{
		ID:         uuid.New().String(),
		Tenant:     rule.Tenant,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Channel:    string(rule.Channel),
		ColumnName: req.ColumnName,
		OldValue:   req.OldValue,
		NewValue:   req.NewValue,
		CreatedAt:  start,
	}
	defer func() {
		attempt.Success = res.Success
		d.record(attempt)
		status := "failure"
		if res.Success {
			status = "success"
		}
		metrics.DispatchAttemptsTotal.WithLabelValues(string(rule.Channel), status).Inc()
		metrics.DispatchDuration.WithLabelValues(string(rule.Channel)).Observe(time.Since(start).Seconds())
	}()

	recipient := message.NormalizePhone(req.RowData[rule.RecipientColumn])
	if recipient == "" {
		attempt.LastError = "recipient column is missing or empty"
		d.logger.Warn("dispatch skipped: no recipient",
			"tenant", rule.Tenant,
			"ruleId", rule.ID,
			"recipientColumn", rule.RecipientColumn)
		return res
	}
	attempt.Recipient = recipient

	if req.Token == "" {
		attempt.LastError = "messaging token unavailable"
		d.logger.Warn("dispatch failed: messaging token unavailable",
			"tenant", rule.Tenant,
			"ruleId", rule.ID)
		return res
	}

	text := message.Expand(rule.MessageTemplate, req.RowData)
	from := message.NormalizePhone(rule.SenderNumber)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var msgID string
	var err error

	switch rule.Channel {
	case rules.ChannelChat:
		msgID, err = d.sender.Send(ctx, req.Token, solapi.Message{
			To:           recipient,
			From:         from,
			Text:         text,
			Type:         solapi.TypeATA,
			KakaoOptions: &solapi.KakaoOptions{DisableSMS: true},
		})
		if err != nil {
			// A failed chat send retries once as SMS.
			d.logger.Warn("chat send failed, falling back to sms",
				"tenant", rule.Tenant,
				"ruleId", rule.ID,
				"error", err)
			attempt.FellBack = true
			metrics.DispatchFallbacksTotal.Inc()
			msgID, err = d.sender.Send(ctx, req.Token, smsMessage(recipient, from, text))
		}
	default:
		msgID, err = d.sender.Send(ctx, req.Token, smsMessage(recipient, from, text))
	}

	if err != nil {
		attempt.LastError = err.Error()
		d.logger.Error("dispatch failed",
			"tenant", rule.Tenant,
			"ruleId", rule.ID,
			"channel", rule.Channel,
			"fellBack", attempt.FellBack,
			"error", err)
		return res
	}

	attempt.ProviderMessageID = msgID
	res.Success = true
	d.logger.Info("dispatched",
		"tenant", rule.Tenant,
		"ruleId", rule.ID,
		"channel", rule.Channel,
		"fellBack", attempt.FellBack,
		"messageId", msgID)
	return res
}

// smsMessage builds an SMS message, classifying it as LMS when the text
// exceeds the 90-byte short-form limit.
func smsMessage(to, from, text string) solapi.Message {
	msgType := solapi.TypeSMS
	if message.IsLongForm(text) {
		msgType = solapi.TypeLMS
	}
	return solapi.Message{To: to, From: from, Text: text, Type: msgType}
}

// record writes the attempt best-effort; a failed audit write never fails
// the dispatch itself.
func (d *Dispatcher) record(attempt *DeliveryAttempt) {
	if d.attempts == nil {
		return
	}
	if err := d.attempts.Record(attempt); err != nil {
		d.logger.Error("failed to record delivery attempt",
			"tenant", attempt.Tenant,
			"ruleId", attempt.RuleID,
			"error", err)
	}
}
