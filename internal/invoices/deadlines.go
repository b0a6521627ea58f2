package invoices

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/shared"
)

// DeadlineStatus is one user's standing against the current submission
// deadline.
type DeadlineStatus struct {
	UserID      int64         `json:"user_id"`
	UserName    string        `json:"user_name"`
	Submitted   bool          `json:"submitted"`
	Status      period.Status `json:"status"`
	Deadline    time.Time     `json:"deadline_iso"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	Message     string        `json:"message,omitempty"`
}

// DeadlineReport summarises submission standing for all active users.
type DeadlineReport struct {
	Zone            string           `json:"zone"`
	WarnWindowHours int              `json:"warn_window_hours"`
	CurrentPeriod   period.Period    `json:"current_period"`
	Statuses        []DeadlineStatus `json:"statuses"`
}

// DeadlineReport evaluates every active user against the current period's
// due instant. Read-only; the per-user invoice lookups fan out concurrently.
func (s *Service) DeadlineReport(ctx context.Context, now time.Time, settings period.Settings) (*DeadlineReport, error) {
	loc, err := settings.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	p := period.Current(now, loc)
	due := period.DueFor(p.End, settings, loc)
	warn := settings.WarnWindow()

	active, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]DeadlineStatus, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range active {
		g.Go(func() error {
			submitted, err := s.store.HasActiveForPeriod(gctx, u.ID, p.Start, p.End)
			if err != nil {
				return err
			}
			status := period.StatusFor(now, due, warn)
			statuses[i] = DeadlineStatus{
				UserID:      u.ID,
				UserName:    u.Name,
				Submitted:   submitted,
				Status:      status,
				Deadline:    due,
				PeriodStart: p.Start,
				PeriodEnd:   p.End,
				Message:     deadlineMessage(submitted, status),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DeadlineReport{
		Zone:            settings.Zone,
		WarnWindowHours: settings.WarnWindowHours,
		CurrentPeriod:   p,
		Statuses:        statuses,
	}, nil
}

func deadlineMessage(submitted bool, status period.Status) string {
	if submitted {
		return ""
	}
	switch status {
	case period.StatusLate:
		return "invoice overdue"
	case period.StatusApproaching:
		return "invoice due soon"
	default:
		return ""
	}
}
