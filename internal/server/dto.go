package server

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
)

// Request payloads

type CreateOrgRequest struct {
	ID   string `json:"id" minLength:"1" maxLength:"64"`
	Name string `json:"name,omitempty"`
}

type ExportRequest struct {
	From        string   `json:"from,omitempty" format:"date" doc:"Inclusive start day (YYYY-MM-DD)"`
	To          string   `json:"to,omitempty" format:"date" doc:"Inclusive end day (YYYY-MM-DD)"`
	Status      string   `json:"status,omitempty" enum:"all,sold,unsold"`
	Owner       string   `json:"owner,omitempty" doc:"Owner name or all"`
	SelectedIDs []string `json:"selected_ids,omitempty" doc:"Exports exactly these stones and ignores the other filters"`
	Format      string   `json:"format,omitempty" enum:"csv,xlsx"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Responses

type OrgResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"active,archived"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type StoneResponse struct {
	ID             string   `json:"id"`
	OrgID          string   `json:"org_id"`
	Name           string   `json:"name"`
	Shape          string   `json:"shape,omitempty"`
	Color          string   `json:"color,omitempty"`
	Cut            string   `json:"cut,omitempty"`
	Weight         string   `json:"weight,omitempty"`
	BuyPrice       string   `json:"buy_price,omitempty"`
	SellPrice      string   `json:"sell_price,omitempty"`
	BuyCurrency    string   `json:"buy_currency,omitempty"`
	SellCurrency   string   `json:"sell_currency,omitempty"`
	Owner          string   `json:"owner,omitempty"`
	Date           string   `json:"date,omitempty"`
	PurchaseDate   string   `json:"purchase_date,omitempty"`
	SoldAt         string   `json:"sold_at,omitempty"`
	Sold           bool     `json:"sold"`
	Comment        string   `json:"comment,omitempty"`
	Identification string   `json:"identification,omitempty"`
	BillNumber     string   `json:"bill_number,omitempty"`
	Buyer          string   `json:"buyer,omitempty"`
	BuyerAddress   string   `json:"buyer_address,omitempty"`
	Images         []string `json:"images"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

type HistoryGroupResponse struct {
	Title string          `json:"title"`
	Date  string          `json:"date,omitempty" format:"date"`
	Items []StoneResponse `json:"items"`
}

type ExportResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FileName    string `json:"file_name,omitempty"`
	Location    string `json:"location,omitempty"`
	Count       int    `json:"count"`
	ContentType string `json:"content_type,omitempty"`
	Document    []byte `json:"document,omitempty" doc:"Base64 encoded file"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	OrgID      string         `json:"org_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty" doc:"Only returned on creation"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	OrgID       string   `json:"org_id,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions"`
}

type OrgConfigResponse struct {
	Owners        []string `json:"owners"`
	Currencies    []string `json:"currencies"`
	Shapes        []string `json:"shapes"`
	Colors        []string `json:"colors"`
	Timezone      string   `json:"timezone"`
	DefaultFormat string   `json:"default_format"`
}

type paginatedStones struct {
	Items      []StoneResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func orgResponse(o domain.Organization) OrgResponse {
	return OrgResponse(o)
}

func stoneResponse(s domain.Stone) StoneResponse {
	imgs := make([]string, 0, len(s.Images))
	for _, img := range s.Images {
		imgs = append(imgs, img.URL)
	}
	return StoneResponse{
		ID:             s.ID,
		OrgID:          s.OrgID,
		Name:           s.Name,
		Shape:          s.Shape,
		Color:          s.Color,
		Cut:            s.Cut,
		Weight:         decimalString(s.Weight),
		BuyPrice:       decimalString(s.BuyPrice),
		SellPrice:      decimalString(s.SellPrice),
		BuyCurrency:    domain.Deref(s.BuyCurrency),
		SellCurrency:   domain.Deref(s.SellCurrency),
		Owner:          domain.Deref(s.Owner),
		Date:           domain.Deref(s.Date),
		PurchaseDate:   domain.Deref(s.PurchaseDate),
		SoldAt:         domain.Deref(s.SoldAt),
		Sold:           s.Sold(),
		Comment:        domain.Deref(s.Comment),
		Identification: domain.Deref(s.Identification),
		BillNumber:     domain.Deref(s.BillNumber),
		Buyer:          domain.Deref(s.Buyer),
		BuyerAddress:   domain.Deref(s.BuyerAddress),
		Images:         imgs,
		CreatedAt:      domain.Deref(s.CreatedAt),
		UpdatedAt:      domain.Deref(s.UpdatedAt),
	}
}

func mapStones(items []domain.Stone) []StoneResponse {
	out := make([]StoneResponse, 0, len(items))
	for _, s := range items {
		out = append(out, stoneResponse(s))
	}
	return out
}

func historyResponse(groups []grouping.Group) []HistoryGroupResponse {
	out := make([]HistoryGroupResponse, 0, len(groups))
	for _, g := range groups {
		item := HistoryGroupResponse{Title: g.Title, Items: mapStones(g.Items)}
		if g.Date != nil {
			item.Date = g.Date.Format("2006-01-02")
		}
		out = append(out, item)
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		OrgID:      e.OrgID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func configResponse(cfg *config.Config) OrgConfigResponse {
	return OrgConfigResponse{
		Owners:        nonNilSlice(cfg.Inventory.Owners),
		Currencies:    nonNilSlice(cfg.Inventory.Currencies),
		Shapes:        nonNilSlice(cfg.Inventory.Shapes),
		Colors:        nonNilSlice(cfg.Inventory.Colors),
		Timezone:      cfg.Inventory.Timezone,
		DefaultFormat: cfg.Export.DefaultFormat,
	}
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
