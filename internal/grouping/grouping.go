// Package grouping buckets stones into date-titled sections for the history
// view.
package grouping

import (
	"sort"
	"time"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

type Mode string

const (
	Purchased Mode = "purchased"
	Sold      Mode = "sold"
)

// TitleLayout is the display format for group titles (DD-MM-YYYY).
const TitleLayout = "02-01-2006"

// UndatedTitle labels the bucket for stones without a usable date.
const UndatedTitle = "No date"

// ParseMode accepts "purchased" and "sold"; empty means purchased.
func ParseMode(v string) (Mode, bool) {
	switch Mode(v) {
	case "", Purchased:
		return Purchased, true
	case Sold:
		return Sold, true
	default:
		return "", false
	}
}

// Group is one section of the history view. Date is nil for the undated bucket.
type Group struct {
	Title string         `json:"title"`
	Date  *time.Time     `json:"date,omitempty" format:"date"`
	Items []domain.Stone `json:"items"`
}

// Grouper formats day boundaries in Location.
type Grouper struct {
	Location *time.Location
}

// GroupByDate groups in UTC.
func GroupByDate(stones []domain.Stone, mode Mode) []Group {
	return Grouper{Location: time.UTC}.Group(stones, mode)
}

// Group keys every stone on the date field selected by mode: sold_at for
// Sold, purchase_date otherwise. Groups come out most recent first with the
// undated bucket last; items inside a group are ordered by created_at
// descending. Every input stone lands in exactly one group.
func (g Grouper) Group(stones []domain.Stone, mode Mode) []Group {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	type bucket struct {
		day   time.Time
		items []domain.Stone
	}
	byTitle := map[string]*bucket{}
	var undated []domain.Stone
	for _, s := range stones {
		t, ok := domain.ParseDate(keyField(s, mode), loc)
		if !ok {
			undated = append(undated, s)
			continue
		}
		t = t.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		title := day.Format(TitleLayout)
		b, ok := byTitle[title]
		if !ok {
			b = &bucket{day: day}
			byTitle[title] = b
		}
		b.items = append(b.items, s)
	}

	groups := make([]Group, 0, len(byTitle)+1)
	for title, b := range byTitle {
		day := b.day
		groups = append(groups, Group{Title: title, Date: &day, Items: sortItems(b.items, loc)})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.After(*groups[j].Date)
	})
	if len(undated) > 0 {
		groups = append(groups, Group{Title: UndatedTitle, Items: sortItems(undated, loc)})
	}
	return groups
}

func keyField(s domain.Stone, mode Mode) *string {
	if mode == Sold {
		return s.SoldAt
	}
	return s.PurchaseDate
}

func sortItems(items []domain.Stone, loc *time.Location) []domain.Stone {
	keys := make(map[string]time.Time, len(items))
	for _, s := range items {
		t, ok := domain.ParseDate(s.CreatedAt, loc)
		if !ok {
			t = time.Unix(0, 0)
		}
		keys[s.ID] = t
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := keys[items[i].ID], keys[items[j].ID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].ID < items[j].ID
	})
	return items
}
