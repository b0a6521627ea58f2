package period

import "time"

// Status classifies how close "now" is to a submission deadline.
type Status string

const (
	StatusOK          Status = "ok"
	StatusApproaching Status = "approaching"
	StatusLate        Status = "late"
)

// StatusFor evaluates a deadline: late once now reaches due, approaching
// inside the warning window, ok otherwise. Total over all well-formed inputs.
func StatusFor(now, due time.Time, warnWindow time.Duration) Status {
	if !now.Before(due) {
		return StatusLate
	}
	if !now.Before(due.Add(-warnWindow)) {
		return StatusApproaching
	}
	return StatusOK
}
