package entries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/period"
)

func TestDateOfKeepsZoneLocalDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// Sunday 23:59:59 EST is already Monday in UTC; the billing day must win.
	end := time.Date(2026, 1, 11, 23, 59, 59, 0, ny)
	require.Equal(t, "2026-01-12", end.In(time.UTC).Format(DateLayout))
	require.Equal(t, "2026-01-11", DateOf(end))

	// Monday 00:01 JST is still Sunday in UTC.
	start := time.Date(2026, 1, 5, 0, 1, 0, 0, tokyo)
	require.Equal(t, "2026-01-04", start.In(time.UTC).Format(DateLayout))
	require.Equal(t, "2026-01-05", DateOf(start))
}

func TestDateOfMatchesPeriodBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	p := period.Current(time.Date(2026, 1, 7, 12, 0, 0, 0, ny), ny)
	require.Equal(t, "2026-01-05", DateOf(p.Start))
	require.Equal(t, "2026-01-11", DateOf(p.End))
}
