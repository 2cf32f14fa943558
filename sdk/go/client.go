package gemstonesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Gemstone Tracker HTTP API client.
type Client struct {
	BaseURL     string
	OrgID       string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, orgID string) *Client {
	return &Client{
		BaseURL: baseURL,
		OrgID:   orgID,
		Timeout: 10 * time.Second,
	}
}

// Stone represents the API stone model. Amounts are decimal strings.
type Stone struct {
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
	Images         []string `json:"images,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

// StoneInput holds the attributes accepted when adding a stone.
type StoneInput struct {
	Name           string   `json:"name"`
	Shape          string   `json:"shape,omitempty"`
	Color          string   `json:"color,omitempty"`
	Cut            string   `json:"cut,omitempty"`
	Weight         string   `json:"weight,omitempty"`
	BuyPrice       string   `json:"buy_price,omitempty"`
	BuyCurrency    string   `json:"buy_currency,omitempty"`
	Owner          string   `json:"owner,omitempty"`
	Date           string   `json:"date,omitempty"`
	PurchaseDate   string   `json:"purchase_date,omitempty"`
	Comment        string   `json:"comment,omitempty"`
	Identification string   `json:"identification,omitempty"`
	Images         []string `json:"images,omitempty"`
}

// HistoryGroup is one day of the purchase or sale history.
type HistoryGroup struct {
	Title string  `json:"title"`
	Date  string  `json:"date,omitempty"`
	Items []Stone `json:"items"`
}

// ExportRequest mirrors the export filters. Dates are YYYY-MM-DD.
type ExportRequest struct {
	From        string   `json:"from,omitempty"`
	To          string   `json:"to,omitempty"`
	Status      string   `json:"status,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	SelectedIDs []string `json:"selected_ids,omitempty"`
	Format      string   `json:"format,omitempty"`
}

// ExportResult is the outcome of an export; Success=false is not an error.
type ExportResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FileName    string `json:"file_name,omitempty"`
	Location    string `json:"location,omitempty"`
	Count       int    `json:"count"`
	ContentType string `json:"content_type,omitempty"`
	Document    []byte `json:"document,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	OrgID      string         `json:"org_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedStones wraps list responses with cursors.
type PaginatedStones struct {
	Items      []Stone `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateStone adds a stone.
func (c *Client) CreateStone(ctx context.Context, in StoneInput) (Stone, error) {
	var resp Stone
	err := c.do(ctx, http.MethodPost, c.orgPath("stones"), in, &resp)
	return resp, err
}

// GetStone fetches a stone by id.
func (c *Client) GetStone(ctx context.Context, id string) (Stone, error) {
	var resp Stone
	err := c.do(ctx, http.MethodGet, c.orgPath("stones/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListStones returns one page of stones, newest first. status is all, sold
// or unsold.
func (c *Client) ListStones(ctx context.Context, status string, limit int, cursor string) (PaginatedStones, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedStones
	err := c.do(ctx, http.MethodGet, withQuery(c.orgPath("stones"), q), nil, &resp)
	return resp, err
}

// Sell marks a stone as sold.
func (c *Client) Sell(ctx context.Context, id, sellPrice, currency, buyer string) (Stone, error) {
	body := map[string]any{}
	if sellPrice != "" {
		body["sell_price"] = sellPrice
	}
	if currency != "" {
		body["sell_currency"] = currency
	}
	if buyer != "" {
		body["buyer"] = buyer
	}
	var resp Stone
	err := c.do(ctx, http.MethodPost, c.orgPath("stones/"+url.PathEscape(id)+"/sell"), body, &resp)
	return resp, err
}

// Search runs a query such as "red & ruby" or "emerald | spinel".
func (c *Client) Search(ctx context.Context, query string) ([]Stone, error) {
	var resp []Stone
	err := c.do(ctx, http.MethodGet, withQuery(c.orgPath("search"), url.Values{"q": {query}}), nil, &resp)
	return resp, err
}

// History groups stones by purchase ("purchased") or sale ("sold") day.
func (c *Client) History(ctx context.Context, mode string) ([]HistoryGroup, error) {
	var resp []HistoryGroup
	err := c.do(ctx, http.MethodGet, withQuery(c.orgPath("history"), url.Values{"mode": {mode}}), nil, &resp)
	return resp, err
}

// Export runs an export and returns the document inline.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	var resp ExportResult
	err := c.do(ctx, http.MethodPost, c.orgPath("exports"), req, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery(c.orgPath("events"), q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) orgPath(p string) string {
	org := url.PathEscape(c.OrgID)
	return fmt.Sprintf("v0/orgs/%s/%s", org, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
