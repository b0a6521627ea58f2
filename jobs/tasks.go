package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/tempora-app/tempora/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInvoiceSubmitted notifies admins that an invoice was submitted.
	TaskTypeInvoiceSubmitted = "invoice:submitted"
	// TaskTypeInvoicePaid notifies the invoice owner about a payment.
	TaskTypeInvoicePaid = "invoice:paid"
)

// InvoiceSubmittedPayload carries the admin notification for a submit.
type InvoiceSubmittedPayload struct {
	InvoiceID   int64     `json:"invoice_id"`
	UserID      int64     `json:"user_id"`
	UserName    string    `json:"user_name"`
	Total       string    `json:"total"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	AdminEmails []string  `json:"admin_emails"`
}

// InvoicePaidPayload carries the owner notification for a payment.
type InvoicePaidPayload struct {
	InvoiceID  int64     `json:"invoice_id"`
	OwnerEmail string    `json:"owner_email"`
	OwnerName  string    `json:"owner_name"`
	Total      string    `json:"total"`
	PaidAt     time.Time `json:"paid_at"`
}

// NewInvoiceSubmittedTask constructs an Asynq task.
func NewInvoiceSubmittedTask(payload InvoiceSubmittedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvoiceSubmitted, data), nil
}

// NewInvoicePaidTask constructs an Asynq task.
func NewInvoicePaidTask(payload InvoicePaidPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvoicePaid, data), nil
}

// amounts are rendered with grouping separators ("1,234.50") in mail bodies.
var printer = message.NewPrinter(language.English)

// NewInvoiceSubmittedHandler processes TaskTypeInvoiceSubmitted tasks.
func NewInvoiceSubmittedHandler(mailer *Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvoiceSubmittedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		tracker := defaultJobMetrics.Track(TaskTypeInvoiceSubmitted)
		if len(payload.AdminEmails) == 0 {
			logger.Warn("no admins to notify", slog.Int64("invoice_id", payload.InvoiceID))
			return tracker.End(nil)
		}
		subject := printer.Sprintf("Invoice #%d submitted by %s", payload.InvoiceID, payload.UserName)
		body := printer.Sprintf(
			"%s submitted invoice #%d for the week of %s to %s.\nTotal: $%s\n",
			payload.UserName, payload.InvoiceID,
			payload.PeriodStart.Format("Jan 2, 2006"), payload.PeriodEnd.Format("Jan 2, 2006"),
			payload.Total,
		)
		return tracker.End(mailer.Send(ctx, payload.AdminEmails, subject, body))
	}
}

// NewInvoicePaidHandler processes TaskTypeInvoicePaid tasks.
func NewInvoicePaidHandler(mailer *Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvoicePaidPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		tracker := defaultJobMetrics.Track(TaskTypeInvoicePaid)
		subject := printer.Sprintf("Invoice #%d paid", payload.InvoiceID)
		body := printer.Sprintf(
			"Hi %s,\n\nYour invoice #%d was paid on %s.\nAmount: $%s\n",
			payload.OwnerName, payload.InvoiceID,
			payload.PaidAt.Format("Jan 2, 2006"), payload.Total,
		)
		return tracker.End(mailer.Send(ctx, []string{payload.OwnerEmail}, subject, body))
	}
}
