package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/query"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want query.Condition
	}{
		{"red", query.Condition{Type: query.None, Terms: []string{"red"}}},
		{"  red  ", query.Condition{Type: query.None, Terms: []string{"red"}}},
		{"red & round & blue", query.Condition{Type: query.And, Terms: []string{"red", "round", "blue"}}},
		{"red | blue", query.Condition{Type: query.Or, Terms: []string{"red", "blue"}}},
		{"", query.Condition{Type: query.None, Terms: []string{""}}},
		{"a & b | c", query.Condition{Type: query.And, Terms: []string{"a", "b | c"}}},
		{"red && blue", query.Condition{Type: query.And, Terms: []string{"red", "blue"}}},
		{"red || blue", query.Condition{Type: query.Or, Terms: []string{"red", "blue"}}},
		{"red & red", query.Condition{Type: query.And, Terms: []string{"red", "red"}}},
		{"&", query.Condition{Type: query.And, Terms: []string{}}},
		{" | ", query.Condition{Type: query.Or, Terms: []string{}}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, query.Parse(tc.in))
		})
	}
}

func strp(s string) *string { return &s }

func TestMatch(t *testing.T) {
	ruby := domain.Stone{ID: "s1", Name: "Ruby", Color: "Red", Shape: "Round", Owner: strp("Company")}
	sapphire := domain.Stone{ID: "s2", Name: "Sapphire", Color: "Blue", Shape: "Oval", Comment: strp("Ceylon, unheated")}

	cases := []struct {
		name  string
		query string
		stone domain.Stone
		want  bool
	}{
		{"single term", "ruby", ruby, true},
		{"case insensitive", "RED", ruby, true},
		{"single miss", "emerald", ruby, false},
		{"empty matches all", "", sapphire, true},
		{"and all present", "red & round", ruby, true},
		{"and one missing", "red & oval", ruby, false},
		{"or one present", "emerald | blue", sapphire, true},
		{"or none present", "emerald | green", sapphire, false},
		{"comment searched", "unheated", sapphire, true},
		{"owner searched", "company", ruby, true},
		{"delimiter only", "&", sapphire, true},
		{"literal pipe inside and", "ruby & red | x", ruby, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, query.Match(query.Parse(tc.query), tc.stone))
		})
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	stones := []domain.Stone{
		{ID: "a", Name: "Red Spinel"},
		{ID: "b", Name: "Blue Spinel"},
		{ID: "c", Name: "Red Garnet"},
	}
	got := query.Filter(stones, "red")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
