package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,archived"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Member struct {
	OrgID     string `json:"org_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Image struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// Stone is one gemstone in an organization's inventory. Optional attributes
// are pointers; dates are kept as the raw strings the backend stored.
type Stone struct {
	ID             string           `json:"id"`
	OrgID          string           `json:"org_id"`
	Name           string           `json:"name"`
	Shape          string           `json:"shape,omitempty"`
	Color          string           `json:"color,omitempty"`
	Cut            string           `json:"cut,omitempty"`
	Weight         *decimal.Decimal `json:"weight,omitempty"`
	BuyPrice       *decimal.Decimal `json:"buy_price,omitempty"`
	SellPrice      *decimal.Decimal `json:"sell_price,omitempty"`
	BuyCurrency    *string          `json:"buy_currency,omitempty"`
	SellCurrency   *string          `json:"sell_currency,omitempty"`
	Owner          *string          `json:"owner,omitempty"`
	Date           *string          `json:"date,omitempty"`
	PurchaseDate   *string          `json:"purchase_date,omitempty"`
	SoldAt         *string          `json:"sold_at,omitempty" format:"date-time"`
	Comment        *string          `json:"comment,omitempty"`
	Identification *string          `json:"identification,omitempty"`
	BillNumber     *string          `json:"bill_number,omitempty"`
	Buyer          *string          `json:"buyer,omitempty"`
	BuyerAddress   *string          `json:"buyer_address,omitempty"`
	Images         []Image          `json:"images,omitempty"`
	CreatedAt      *string          `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt      *string          `json:"updated_at,omitempty" format:"date-time"`
	DeletedAt      *string          `json:"deleted_at,omitempty" format:"date-time"`
}

// Sold reports whether the stone has a sale timestamp. SoldAt is the only
// source of truth for sold status.
func (s Stone) Sold() bool {
	return s.SoldAt != nil
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a stored date or timestamp. Nil, blank and unparseable
// values all report ok=false. Values without a zone are read in loc.
func ParseDate(v *string, loc *time.Location) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Deref returns the pointed-to string or "".
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// StringPtr returns nil for blank input.
func StringPtr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
