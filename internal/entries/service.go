package entries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tempora-app/tempora/internal/shared"
)

// RepositoryPort defines data access methods for the entry ledger.
type RepositoryPort interface {
	Insert(ctx context.Context, e *TimeEntry) error
	Get(ctx context.Context, id int64) (*TimeEntry, error)
	Update(ctx context.Context, e *TimeEntry) error
	Delete(ctx context.Context, id int64) error
	ListOpen(ctx context.Context, userID int64, from, to time.Time) ([]TimeEntry, error)
	List(ctx context.Context, f ListFilter) ([]TimeEntry, int, error)
}

// TagSource resolves the active tag enumeration used for validation.
type TagSource interface {
	ActiveNames(ctx context.Context) ([]string, error)
}

// Service owns the open/invoiced partitioning of time entries.
type Service struct {
	repo RepositoryPort
	tags TagSource
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, tags TagSource) *Service {
	return &Service{repo: repo, tags: tags}
}

// Create validates and records a new open entry for the user.
func (s *Service) Create(ctx context.Context, userID int64, fields EntryFields) (*TimeEntry, error) {
	activeTags, err := s.tags.ActiveNames(ctx)
	if err != nil {
		return nil, err
	}
	workDate, err := fields.Validate(activeTags)
	if err != nil {
		return nil, err
	}

	e := &TimeEntry{
		UserID:       userID,
		WorkDate:     workDate,
		Hours:        fields.Hours,
		Task:         strings.TrimSpace(fields.Task),
		Notes:        fields.Notes,
		Tag:          fields.Tag,
		RateOverride: fields.Rate,
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update rewrites an open entry owned by the user. Attached entries are
// immutable and fail with a conflict.
func (s *Service) Update(ctx context.Context, userID, id int64, fields EntryFields) (*TimeEntry, error) {
	e, err := s.scopedEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	activeTags, err := s.tags.ActiveNames(ctx)
	if err != nil {
		return nil, err
	}
	workDate, err := fields.Validate(activeTags)
	if err != nil {
		return nil, err
	}

	e.WorkDate = workDate
	e.Hours = fields.Hours
	e.Task = strings.TrimSpace(fields.Task)
	e.Notes = fields.Notes
	e.Tag = fields.Tag
	e.RateOverride = fields.Rate
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an open entry owned by the user, with the same guard.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.scopedEntry(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ListOpen returns uninvoiced entries whose work date falls within the given
// period bounds, calendar-date inclusive on both ends.
func (s *Service) ListOpen(ctx context.Context, userID int64, periodStart, periodEnd time.Time) ([]TimeEntry, error) {
	return s.repo.ListOpen(ctx, userID, periodStart, periodEnd)
}

// List returns entries matching the filter plus the total count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]TimeEntry, int, error) {
	if f.UserID == 0 {
		return nil, 0, fmt.Errorf("entries: user id required")
	}
	return s.repo.List(ctx, f)
}

// scopedEntry loads an entry and hides it when owned by someone else.
func (s *Service) scopedEntry(ctx context.Context, userID, id int64) (*TimeEntry, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, fmt.Errorf("%w: entry %d", shared.ErrNotFound, id)
	}
	return e, nil
}
