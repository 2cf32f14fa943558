package grouping_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
)

func strp(s string) *string { return &s }

func titles(groups []grouping.Group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Title)
	}
	return out
}

func countItems(groups []grouping.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Items)
	}
	return n
}

func TestGroupsAreDateDescending(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", PurchaseDate: strp("2024-01-05")},
		{ID: "b", PurchaseDate: strp("2024-03-01")},
		{ID: "c", PurchaseDate: strp("2024-02-15")},
	}
	groups := grouping.GroupByDate(stones, grouping.Purchased)
	assert.Equal(t, []string{"01-03-2024", "15-02-2024", "05-01-2024"}, titles(groups))
}

func TestChronologicalNotLexicalOrder(t *testing.T) {
	// "31-01-2024" sorts after "01-12-2024" as a string.
	stones := []domain.Stone{
		{ID: "a", PurchaseDate: strp("2024-01-31")},
		{ID: "b", PurchaseDate: strp("2024-12-01")},
	}
	groups := grouping.GroupByDate(stones, grouping.Purchased)
	assert.Equal(t, []string{"01-12-2024", "31-01-2024"}, titles(groups))
}

func TestSameDayDifferentTimesShareGroup(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", SoldAt: strp("2024-05-03T08:00:00Z")},
		{ID: "b", SoldAt: strp("2024-05-03T22:30:00Z")},
	}
	groups := grouping.GroupByDate(stones, grouping.Sold)
	require.Len(t, groups, 1)
	assert.Equal(t, "03-05-2024", groups[0].Title)
	assert.Len(t, groups[0].Items, 2)
}

func TestUndatedBucket(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", PurchaseDate: strp("2024-01-05")},
		{ID: "b", PurchaseDate: nil},
		{ID: "c", PurchaseDate: strp("not a date")},
		{ID: "d", PurchaseDate: strp("2024-13-45")},
		{ID: "e", PurchaseDate: strp("  ")},
	}
	groups := grouping.GroupByDate(stones, grouping.Purchased)
	require.Len(t, groups, 2)
	assert.Equal(t, "05-01-2024", groups[0].Title)
	assert.Equal(t, grouping.UndatedTitle, groups[1].Title)
	assert.Nil(t, groups[1].Date)
	assert.Len(t, groups[1].Items, 4)
	assert.Equal(t, len(stones), countItems(groups))
}

func TestSoldModeKeysOnSoldAt(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", PurchaseDate: strp("2023-01-01"), SoldAt: strp("2024-06-10T10:00:00Z")},
		{ID: "b", PurchaseDate: strp("2023-01-01"), SoldAt: strp("2024-06-11T10:00:00Z")},
	}
	groups := grouping.GroupByDate(stones, grouping.Sold)
	assert.Equal(t, []string{"11-06-2024", "10-06-2024"}, titles(groups))

	purchased := grouping.GroupByDate(stones, grouping.Purchased)
	assert.Equal(t, []string{"01-01-2023"}, titles(purchased))
}

func TestItemsOrderedByCreatedAtDescending(t *testing.T) {
	stones := []domain.Stone{
		{ID: "old", PurchaseDate: strp("2024-01-05"), CreatedAt: strp("2024-01-05T08:00:00Z")},
		{ID: "none", PurchaseDate: strp("2024-01-05")},
		{ID: "new", PurchaseDate: strp("2024-01-05"), CreatedAt: strp("2024-01-06T08:00:00Z")},
		{ID: "bad", PurchaseDate: strp("2024-01-05"), CreatedAt: strp("yesterday")},
	}
	groups := grouping.GroupByDate(stones, grouping.Purchased)
	require.Len(t, groups, 1)
	ids := []string{}
	for _, s := range groups[0].Items {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"new", "old", "bad", "none"}, ids)
}

func TestDeterministic(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", PurchaseDate: strp("2024-01-05"), CreatedAt: strp("2024-01-05T08:00:00Z")},
		{ID: "b", PurchaseDate: strp("2024-01-05"), CreatedAt: strp("2024-01-05T08:00:00Z")},
		{ID: "c", PurchaseDate: strp("2024-02-05")},
		{ID: "d"},
	}
	first := grouping.GroupByDate(stones, grouping.Purchased)
	second := grouping.GroupByDate(stones, grouping.Purchased)
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[1].Items[0].ID)
}

func TestGrouperLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	stones := []domain.Stone{
		{ID: "a", SoldAt: strp("2024-05-03T20:00:00Z")},
	}
	groups := grouping.Grouper{Location: loc}.Group(stones, grouping.Sold)
	require.Len(t, groups, 1)
	assert.Equal(t, "04-05-2024", groups[0].Title)
}

func TestEmptyInput(t *testing.T) {
	assert.Empty(t, grouping.GroupByDate(nil, grouping.Purchased))
}

func TestParseMode(t *testing.T) {
	m, ok := grouping.ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, grouping.Purchased, m)
	m, ok = grouping.ParseMode("sold")
	assert.True(t, ok)
	assert.Equal(t, grouping.Sold, m)
	_, ok = grouping.ParseMode("deleted")
	assert.False(t, ok)
}
