// Package query turns free-text inventory searches into boolean conditions and
// evaluates them against stones.
//
// The grammar is flat: a query containing '&' is an AND of its pieces,
// otherwise a query containing '|' is an OR of its pieces, otherwise it is a
// single term. There is no nesting and no escaping of the delimiters.
package query

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

type Type string

const (
	And  Type = "AND"
	Or   Type = "OR"
	None Type = "NONE"
)

// Condition is the parsed form of a search string.
type Condition struct {
	Type  Type     `json:"type" enum:"AND,OR,NONE"`
	Terms []string `json:"terms"`
}

// Parse never fails; degenerate input yields a well-defined condition.
func Parse(q string) Condition {
	if strings.Contains(q, "&") {
		return Condition{Type: And, Terms: splitTerms(q, "&")}
	}
	if strings.Contains(q, "|") {
		return Condition{Type: Or, Terms: splitTerms(q, "|")}
	}
	return Condition{Type: None, Terms: []string{strings.TrimSpace(q)}}
}

func splitTerms(q, sep string) []string {
	terms := []string{}
	for _, piece := range strings.Split(q, sep) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		terms = append(terms, piece)
	}
	return terms
}

// Match reports whether s satisfies c. A term matches when its case-folded
// text is a substring of any searchable field; an empty term matches
// everything.
func Match(c Condition, s domain.Stone) bool {
	if len(c.Terms) == 0 {
		return true
	}
	folder := cases.Fold()
	haystack := searchable(folder, s)
	switch c.Type {
	case And:
		for _, term := range c.Terms {
			if !matchTerm(folder, haystack, term) {
				return false
			}
		}
		return true
	case Or, None:
		for _, term := range c.Terms {
			if matchTerm(folder, haystack, term) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Filter parses q once and keeps matching stones in input order.
func Filter(stones []domain.Stone, q string) []domain.Stone {
	c := Parse(q)
	out := make([]domain.Stone, 0, len(stones))
	for _, s := range stones {
		if Match(c, s) {
			out = append(out, s)
		}
	}
	return out
}

func matchTerm(folder cases.Caser, haystack []string, term string) bool {
	if term == "" {
		return true
	}
	needle := folder.String(term)
	for _, field := range haystack {
		if strings.Contains(field, needle) {
			return true
		}
	}
	return false
}

func searchable(folder cases.Caser, s domain.Stone) []string {
	fields := []string{
		s.ID,
		s.Name,
		s.Shape,
		s.Color,
		s.Cut,
		domain.Deref(s.Owner),
		domain.Deref(s.Comment),
		domain.Deref(s.Identification),
		domain.Deref(s.BillNumber),
		domain.Deref(s.Buyer),
		domain.Deref(s.BuyerAddress),
	}
	out := fields[:0]
	for _, f := range fields {
		if f == "" {
			continue
		}
		out = append(out, folder.String(f))
	}
	return out
}
