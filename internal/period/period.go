// Package period computes the canonical weekly billing period and its
// submission deadline. Everything here is pure: given the same clock reading
// and settings the results are identical, so callers can recompute period
// bounds at any time and compare them against persisted invoices.
package period

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings configures the billing window. The values live in the settings
// store and are resolved once per request by the caller.
type Settings struct {
	// Weekday/Hour/Minute locate the submission deadline inside the week
	// following a period (0 = Sunday, per time.Weekday).
	Weekday int `json:"weekday" validate:"min=0,max=6"`
	Hour    int `json:"hour" validate:"min=0,max=23"`
	Minute  int `json:"minute" validate:"min=0,max=59"`
	// Zone is the IANA time zone the work week is anchored in.
	Zone string `json:"zone" validate:"required"`
	// WarnWindowHours is how long before the deadline the status flips to
	// approaching.
	WarnWindowHours int `json:"warn_window_hours" validate:"min=0"`
}

// DefaultSettings bills Monday through Sunday with submissions due the
// following Tuesday at 23:59:59 UTC.
func DefaultSettings() Settings {
	return Settings{
		Weekday:         int(time.Tuesday),
		Hour:            23,
		Minute:          59,
		Zone:            "UTC",
		WarnWindowHours: 24,
	}
}

var validate = validator.New()

// Validate checks ranges and resolves the zone.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("period: invalid settings: %w", err)
	}
	if _, err := time.LoadLocation(s.Zone); err != nil {
		return fmt.Errorf("period: invalid zone %q: %w", s.Zone, err)
	}
	return nil
}

// Location resolves the configured IANA zone.
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Zone)
	if err != nil {
		return nil, fmt.Errorf("period: load zone %q: %w", s.Zone, err)
	}
	return loc, nil
}

// WarnWindow returns the warning window as a duration.
func (s Settings) WarnWindow() time.Duration {
	return time.Duration(s.WarnWindowHours) * time.Hour
}

// Period is the Monday-through-Sunday work week an invoice bills for. Bounds
// are inclusive instants in the configured zone.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Current returns the work week containing now: Monday 00:01:00 through the
// following Sunday 23:59:59 in loc.
func Current(now time.Time, loc *time.Location) Period {
	n := now.In(loc)
	sinceMonday := (int(n.Weekday()) + 6) % 7
	return Period{
		Start: time.Date(n.Year(), n.Month(), n.Day()-sinceMonday, 0, 1, 0, 0, loc),
		End:   time.Date(n.Year(), n.Month(), n.Day()-sinceMonday+6, 23, 59, 59, 0, loc),
	}
}

// DueFor returns the submission deadline for a period ending at periodEnd:
// the next occurrence of the configured weekday at hour:minute:59 strictly
// after periodEnd. A candidate on or before the period end rolls forward a
// full week so the deadline can never sit inside the period it closes.
func DueFor(periodEnd time.Time, s Settings, loc *time.Location) time.Time {
	e := periodEnd.In(loc)
	days := (s.Weekday - int(e.Weekday()) + 7) % 7
	due := time.Date(e.Year(), e.Month(), e.Day()+days, s.Hour, s.Minute, 59, 0, loc)
	if !due.After(periodEnd) {
		due = due.AddDate(0, 0, 7)
	}
	return due
}
