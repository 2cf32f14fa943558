package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

type SoldStatus string

const (
	StatusAll    SoldStatus = "all"
	StatusSold   SoldStatus = "sold"
	StatusUnsold SoldStatus = "unsold"
)

// AllOwners disables the owner predicate.
const AllOwners = "all"

// ParseSoldStatus validates a status at the boundary. Empty means all.
func ParseSoldStatus(v string) (SoldStatus, error) {
	switch SoldStatus(v) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusSold:
		return StatusSold, nil
	case StatusUnsold:
		return StatusUnsold, nil
	default:
		return "", fmt.Errorf("invalid sold status %q (want all, sold or unsold)", v)
	}
}

// Filters selects the stones to export. A zero StartDate or EndDate leaves
// that side of the range open. A non-empty SelectedIDs replaces every other
// predicate, the date range included.
type Filters struct {
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	SoldStatus  SoldStatus `json:"sold_status"`
	Owner       string     `json:"owner"`
	SelectedIDs []string   `json:"selected_ids,omitempty"`
}

// HasSelection reports whether the selection override is active.
func (f Filters) HasSelection() bool {
	return len(f.SelectedIDs) > 0
}

func (f Filters) status() SoldStatus {
	if f.SoldStatus == "" {
		return StatusAll
	}
	return f.SoldStatus
}

func (f Filters) owner() string {
	if f.Owner == "" {
		return AllOwners
	}
	return f.Owner
}

// Apply returns the stones that survive f, in input order. now stands in for
// stones that carry neither a date nor a purchase date.
func Apply(stones []domain.Stone, f Filters, now time.Time, loc *time.Location) []domain.Stone {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]domain.Stone, 0, len(stones))
	if f.HasSelection() {
		selected := make(map[string]struct{}, len(f.SelectedIDs))
		for _, id := range f.SelectedIDs {
			selected[id] = struct{}{}
		}
		for _, s := range stones {
			if _, ok := selected[s.ID]; ok {
				out = append(out, s)
			}
		}
		return out
	}

	var from, to time.Time
	if !f.StartDate.IsZero() {
		from = startOfDay(f.StartDate, loc)
	}
	if !f.EndDate.IsZero() {
		to = endOfDay(f.EndDate, loc)
	}
	status := f.status()
	owner := f.owner()
	for _, s := range stones {
		d := comparisonDate(s, now, loc)
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		if !matchStatus(s, status) {
			continue
		}
		if owner != AllOwners && domain.Deref(s.Owner) != owner {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchStatus(s domain.Stone, status SoldStatus) bool {
	switch status {
	case StatusSold:
		return s.Sold()
	case StatusUnsold:
		return !s.Sold()
	default:
		return true
	}
}

// RecordDate is the stone's date, falling back to its purchase date.
func RecordDate(s domain.Stone, loc *time.Location) (time.Time, bool) {
	if t, ok := domain.ParseDate(s.Date, loc); ok {
		return t, true
	}
	return domain.ParseDate(s.PurchaseDate, loc)
}

func comparisonDate(s domain.Stone, now time.Time, loc *time.Location) time.Time {
	if t, ok := RecordDate(s, loc); ok {
		return t
	}
	return now
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DayLayout is the input format for range bounds.
const DayLayout = "2006-01-02"

// ParseDay reads a YYYY-MM-DD range bound in loc. Blank input gives the zero
// time, which leaves that side of the range open.
func ParseDay(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
	}
	return t, nil
}
