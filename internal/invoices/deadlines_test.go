package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/period"
)

func reportFor(t *testing.T, statuses []DeadlineStatus, userID int64) DeadlineStatus {
	t.Helper()
	for _, s := range statuses {
		if s.UserID == userID {
			return s
		}
	}
	t.Fatalf("no status for user %d", userID)
	return DeadlineStatus{}
}

func TestDeadlineReportFlagsMissingSubmissions(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	seedWeekEntries(store, 2)
	_, err := svc.Submit(context.Background(), 2, period.DefaultSettings())
	require.NoError(t, err)

	report, err := svc.DeadlineReport(context.Background(), testNow, period.DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, "UTC", report.Zone)
	require.Len(t, report.Statuses, 3)

	// Due Tuesday Jan 13 23:59:59 after the period ends Sunday Jan 11.
	due := time.Date(2026, time.January, 13, 23, 59, 59, 0, time.UTC)
	for _, s := range report.Statuses {
		require.Equal(t, due, s.Deadline)
	}

	mara := reportFor(t, report.Statuses, 2)
	require.True(t, mara.Submitted)
	require.Empty(t, mara.Message)

	jonas := reportFor(t, report.Statuses, 3)
	require.False(t, jonas.Submitted)
	require.Equal(t, period.StatusOK, jonas.Status)
	require.Empty(t, jonas.Message)
}

func TestDeadlineReportApproachingWithinWarnWindow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	settings := period.DefaultSettings()
	settings.WarnWindowHours = 72

	// Sunday noon, some 60 hours before Tuesday's 23:59:59 deadline.
	warnTime := time.Date(2026, time.January, 11, 12, 0, 0, 0, time.UTC)
	report, err := svc.DeadlineReport(context.Background(), warnTime, settings)
	require.NoError(t, err)
	require.Equal(t, 72, report.WarnWindowHours)

	jonas := reportFor(t, report.Statuses, 3)
	require.Equal(t, period.StatusApproaching, jonas.Status)
	require.Equal(t, "invoice due soon", jonas.Message)
}

func TestDeadlineMessages(t *testing.T) {
	require.Empty(t, deadlineMessage(true, period.StatusLate))
	require.Empty(t, deadlineMessage(false, period.StatusOK))
	require.Equal(t, "invoice due soon", deadlineMessage(false, period.StatusApproaching))
	require.Equal(t, "invoice overdue", deadlineMessage(false, period.StatusLate))
}

func TestDeadlineReportRejectsBadZone(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	settings := period.DefaultSettings()
	settings.Zone = "Mars/Olympus"

	_, err := svc.DeadlineReport(context.Background(), testNow, settings)
	require.Error(t, err)
}
