package jobs

import (
	"context"

	"github.com/tempora-app/tempora/internal/invoices"
)

// Notifier adapts the Asynq client to the lifecycle manager's outbox-style
// notification port.
type Notifier struct {
	client *Client
}

// NewNotifier wraps an Asynq client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// InvoiceSubmitted enqueues the admin notification for a committed submit.
func (n *Notifier) InvoiceSubmitted(ctx context.Context, notice invoices.SubmittedNotice) error {
	_, err := n.client.EnqueueInvoiceSubmitted(ctx, InvoiceSubmittedPayload{
		InvoiceID:   notice.InvoiceID,
		UserID:      notice.UserID,
		UserName:    notice.UserName,
		Total:       notice.Total.StringFixed(2),
		PeriodStart: notice.PeriodStart,
		PeriodEnd:   notice.PeriodEnd,
		AdminEmails: notice.AdminEmails,
	})
	return err
}

// InvoicePaid enqueues the owner notification for a committed payment.
func (n *Notifier) InvoicePaid(ctx context.Context, notice invoices.PaidNotice) error {
	_, err := n.client.EnqueueInvoicePaid(ctx, InvoicePaidPayload{
		InvoiceID:  notice.InvoiceID,
		OwnerEmail: notice.OwnerEmail,
		OwnerName:  notice.OwnerName,
		Total:      notice.Total.StringFixed(2),
		PaidAt:     notice.PaidAt,
	})
	return err
}
