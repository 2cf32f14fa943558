package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/events"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/logging"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

// StoneInput holds the attributes of a new stone. Amounts are decimal text.
type StoneInput struct {
	ID             string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Name           string   `json:"name" validate:"required,max=200"`
	Shape          string   `json:"shape,omitempty" validate:"max=100"`
	Color          string   `json:"color,omitempty" validate:"max=100"`
	Cut            string   `json:"cut,omitempty" validate:"max=100"`
	Weight         string   `json:"weight,omitempty" validate:"omitempty,numeric"`
	BuyPrice       string   `json:"buy_price,omitempty" validate:"omitempty,numeric"`
	SellPrice      string   `json:"sell_price,omitempty" validate:"omitempty,numeric"`
	BuyCurrency    string   `json:"buy_currency,omitempty" validate:"omitempty,max=10"`
	SellCurrency   string   `json:"sell_currency,omitempty" validate:"omitempty,max=10"`
	Owner          string   `json:"owner,omitempty" validate:"max=100"`
	Date           string   `json:"date,omitempty" validate:"omitempty,stonedate"`
	PurchaseDate   string   `json:"purchase_date,omitempty" validate:"omitempty,stonedate"`
	SoldAt         string   `json:"sold_at,omitempty" validate:"omitempty,stonedate"`
	Comment        string   `json:"comment,omitempty" validate:"max=4000"`
	Identification string   `json:"identification,omitempty" validate:"max=200"`
	BillNumber     string   `json:"bill_number,omitempty" validate:"max=100"`
	Buyer          string   `json:"buyer,omitempty" validate:"max=200"`
	BuyerAddress   string   `json:"buyer_address,omitempty" validate:"max=1000"`
	Images         []string `json:"images,omitempty" validate:"omitempty,dive,url"`
}

// StonePatch changes the non-nil fields of a stone. A pointer to "" clears
// an optional field.
type StonePatch struct {
	Name           *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Shape          *string   `json:"shape,omitempty" validate:"omitempty,max=100"`
	Color          *string   `json:"color,omitempty" validate:"omitempty,max=100"`
	Cut            *string   `json:"cut,omitempty" validate:"omitempty,max=100"`
	Weight         *string   `json:"weight,omitempty" validate:"omitempty,numeric"`
	BuyPrice       *string   `json:"buy_price,omitempty" validate:"omitempty,numeric"`
	SellPrice      *string   `json:"sell_price,omitempty" validate:"omitempty,numeric"`
	BuyCurrency    *string   `json:"buy_currency,omitempty" validate:"omitempty,max=10"`
	SellCurrency   *string   `json:"sell_currency,omitempty" validate:"omitempty,max=10"`
	Owner          *string   `json:"owner,omitempty" validate:"omitempty,max=100"`
	Date           *string   `json:"date,omitempty" validate:"omitempty,stonedate"`
	PurchaseDate   *string   `json:"purchase_date,omitempty" validate:"omitempty,stonedate"`
	Comment        *string   `json:"comment,omitempty" validate:"omitempty,max=4000"`
	Identification *string   `json:"identification,omitempty" validate:"omitempty,max=200"`
	BillNumber     *string   `json:"bill_number,omitempty" validate:"omitempty,max=100"`
	Buyer          *string   `json:"buyer,omitempty" validate:"omitempty,max=200"`
	BuyerAddress   *string   `json:"buyer_address,omitempty" validate:"omitempty,max=1000"`
	Images         *[]string `json:"images,omitempty" validate:"omitempty,dive,url"`
}

// Sale records a sale. SoldAt defaults to now.
type Sale struct {
	SoldAt       string `json:"sold_at,omitempty" validate:"omitempty,stonedate"`
	SellPrice    string `json:"sell_price,omitempty" validate:"omitempty,numeric"`
	SellCurrency string `json:"sell_currency,omitempty" validate:"omitempty,max=10"`
	Buyer        string `json:"buyer,omitempty" validate:"max=200"`
	BuyerAddress string `json:"buyer_address,omitempty" validate:"max=1000"`
	BillNumber   string `json:"bill_number,omitempty" validate:"max=100"`
}

func (e Engine) CreateStone(ctx context.Context, orgID, actorID string, in StoneInput) (domain.Stone, error) {
	if err := e.validate(in); err != nil {
		return domain.Stone{}, err
	}
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return domain.Stone{}, err
	}
	now := e.stamp()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = newID()
	}
	s := domain.Stone{
		ID:             id,
		OrgID:          orgID,
		Name:           strings.TrimSpace(in.Name),
		Shape:          strings.TrimSpace(in.Shape),
		Color:          strings.TrimSpace(in.Color),
		Cut:            strings.TrimSpace(in.Cut),
		BuyCurrency:    domain.StringPtr(in.BuyCurrency),
		SellCurrency:   domain.StringPtr(in.SellCurrency),
		Owner:          domain.StringPtr(in.Owner),
		Date:           domain.StringPtr(in.Date),
		PurchaseDate:   domain.StringPtr(in.PurchaseDate),
		SoldAt:         domain.StringPtr(in.SoldAt),
		Comment:        domain.StringPtr(in.Comment),
		Identification: domain.StringPtr(in.Identification),
		BillNumber:     domain.StringPtr(in.BillNumber),
		Buyer:          domain.StringPtr(in.Buyer),
		BuyerAddress:   domain.StringPtr(in.BuyerAddress),
		Images:         images(in.Images),
		CreatedAt:      &now,
		UpdatedAt:      &now,
	}
	fields := map[string]string{}
	s.Weight = parseAmount(fields, "Weight", in.Weight)
	s.BuyPrice = parseAmount(fields, "BuyPrice", in.BuyPrice)
	s.SellPrice = parseAmount(fields, "SellPrice", in.SellPrice)
	checkAgainstConfig(fields, cfg, s)
	if len(fields) > 0 {
		return domain.Stone{}, ValidationError{Fields: fields}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stone{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStone(ctx, tx, s); err != nil {
		return domain.Stone{}, err
	}
	if err := e.events().Append(ctx, tx, events.StoneCreated, orgID, "stone", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Stone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stone{}, err
	}
	e.logger().WithFields(logrus.Fields{"org": orgID, "stone": s.ID}).Debug("stone created")
	return s, nil
}

func (e Engine) GetStone(ctx context.Context, orgID, id string) (domain.Stone, error) {
	return e.Repo.GetStone(ctx, nil, orgID, id)
}

func (e Engine) ListStones(ctx context.Context, f repo.StoneFilters) ([]domain.Stone, error) {
	return e.Repo.ListStones(ctx, f)
}

// liveStones loads every non-deleted stone of the organization.
func (e Engine) liveStones(ctx context.Context, orgID string) ([]domain.Stone, error) {
	if _, err := e.Repo.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return e.Repo.ListStones(ctx, repo.StoneFilters{OrgID: orgID})
}

func (e Engine) UpdateStone(ctx context.Context, orgID, actorID, id string, p StonePatch) (domain.Stone, error) {
	if err := e.validate(p); err != nil {
		return domain.Stone{}, err
	}
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return domain.Stone{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stone{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetStone(ctx, tx, orgID, id)
	if err != nil {
		return s, err
	}

	fields := map[string]string{}
	var changed []string
	setText := func(name string, dst *string, v *string) {
		if v == nil {
			return
		}
		*dst = strings.TrimSpace(*v)
		changed = append(changed, name)
	}
	setOpt := func(name string, dst **string, v *string) {
		if v == nil {
			return
		}
		*dst = domain.StringPtr(*v)
		changed = append(changed, name)
	}
	setAmount := func(name string, dst **decimal.Decimal, v *string) {
		if v == nil {
			return
		}
		*dst = parseAmount(fields, name, *v)
		changed = append(changed, name)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		fields["Name"] = "required"
	}
	setText("name", &s.Name, p.Name)
	setText("shape", &s.Shape, p.Shape)
	setText("color", &s.Color, p.Color)
	setText("cut", &s.Cut, p.Cut)
	setAmount("weight", &s.Weight, p.Weight)
	setAmount("buy_price", &s.BuyPrice, p.BuyPrice)
	setAmount("sell_price", &s.SellPrice, p.SellPrice)
	setOpt("buy_currency", &s.BuyCurrency, p.BuyCurrency)
	setOpt("sell_currency", &s.SellCurrency, p.SellCurrency)
	setOpt("owner", &s.Owner, p.Owner)
	setOpt("date", &s.Date, p.Date)
	setOpt("purchase_date", &s.PurchaseDate, p.PurchaseDate)
	setOpt("comment", &s.Comment, p.Comment)
	setOpt("identification", &s.Identification, p.Identification)
	setOpt("bill_number", &s.BillNumber, p.BillNumber)
	setOpt("buyer", &s.Buyer, p.Buyer)
	setOpt("buyer_address", &s.BuyerAddress, p.BuyerAddress)
	if p.Images != nil {
		s.Images = images(*p.Images)
		changed = append(changed, "images")
	}
	checkAgainstConfig(fields, cfg, s)
	if len(fields) > 0 {
		return domain.Stone{}, ValidationError{Fields: fields}
	}
	if len(changed) == 0 {
		return s, nil
	}
	now := e.stamp()
	s.UpdatedAt = &now
	if err := e.Repo.UpdateStone(ctx, tx, s); err != nil {
		return domain.Stone{}, err
	}
	if err := e.events().Append(ctx, tx, events.StoneUpdated, orgID, "stone", s.ID, actorID, events.EventPayload{"fields": changed}); err != nil {
		return domain.Stone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stone{}, err
	}
	return s, nil
}

// MarkSold stamps sold_at and the sale details.
func (e Engine) MarkSold(ctx context.Context, orgID, actorID, id string, sale Sale) (domain.Stone, error) {
	if err := e.validate(sale); err != nil {
		return domain.Stone{}, err
	}
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return domain.Stone{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stone{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetStone(ctx, tx, orgID, id)
	if err != nil {
		return s, err
	}
	if s.Sold() {
		return s, ErrAlreadySold
	}
	now := e.stamp()
	soldAt := strings.TrimSpace(sale.SoldAt)
	if soldAt == "" {
		soldAt = now
	}
	s.SoldAt = &soldAt
	fields := map[string]string{}
	if sale.SellPrice != "" {
		s.SellPrice = parseAmount(fields, "SellPrice", sale.SellPrice)
	}
	if v := domain.StringPtr(sale.SellCurrency); v != nil {
		s.SellCurrency = v
	}
	if v := domain.StringPtr(sale.Buyer); v != nil {
		s.Buyer = v
	}
	if v := domain.StringPtr(sale.BuyerAddress); v != nil {
		s.BuyerAddress = v
	}
	if v := domain.StringPtr(sale.BillNumber); v != nil {
		s.BillNumber = v
	}
	checkAgainstConfig(fields, cfg, s)
	if len(fields) > 0 {
		return domain.Stone{}, ValidationError{Fields: fields}
	}
	s.UpdatedAt = &now
	if err := e.Repo.UpdateStone(ctx, tx, s); err != nil {
		return domain.Stone{}, err
	}
	if err := e.events().Append(ctx, tx, events.StoneSold, orgID, "stone", s.ID, actorID, events.EventPayload{"sold_at": soldAt}); err != nil {
		return domain.Stone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stone{}, err
	}
	return s, nil
}

// MarkUnsold clears sold_at. Sale details are kept.
func (e Engine) MarkUnsold(ctx context.Context, orgID, actorID, id string) (domain.Stone, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stone{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetStone(ctx, tx, orgID, id)
	if err != nil {
		return s, err
	}
	if !s.Sold() {
		return s, ErrNotSold
	}
	now := e.stamp()
	s.SoldAt = nil
	s.UpdatedAt = &now
	if err := e.Repo.UpdateStone(ctx, tx, s); err != nil {
		return domain.Stone{}, err
	}
	if err := e.events().Append(ctx, tx, events.StoneUnsold, orgID, "stone", s.ID, actorID, nil); err != nil {
		return domain.Stone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stone{}, err
	}
	return s, nil
}

// DeleteStone soft-deletes a stone.
func (e Engine) DeleteStone(ctx context.Context, orgID, actorID, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SoftDeleteStone(ctx, tx, orgID, id, e.stamp()); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logging.LogError(e.Log, "engine", "DeleteStone", orgID, map[string]any{"stone": id}, err)
		}
		return err
	}
	if err := e.events().Append(ctx, tx, events.StoneDeleted, orgID, "stone", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func parseAmount(fields map[string]string, name, v string) *decimal.Decimal {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		fields[name] = "numeric"
		return nil
	}
	if d.IsNegative() {
		fields[name] = "gte"
		return nil
	}
	return &d
}

// checkAgainstConfig enforces the organization's closed lists.
func checkAgainstConfig(fields map[string]string, cfg *config.Config, s domain.Stone) {
	if cfg == nil {
		return
	}
	if s.Owner != nil && !config.Allows(cfg.Inventory.Owners, *s.Owner) {
		fields["Owner"] = "oneof"
	}
	if s.BuyCurrency != nil && !config.Allows(cfg.Inventory.Currencies, *s.BuyCurrency) {
		fields["BuyCurrency"] = "oneof"
	}
	if s.SellCurrency != nil && !config.Allows(cfg.Inventory.Currencies, *s.SellCurrency) {
		fields["SellCurrency"] = "oneof"
	}
	if !config.Allows(cfg.Inventory.Shapes, s.Shape) {
		fields["Shape"] = "oneof"
	}
	if !config.Allows(cfg.Inventory.Colors, s.Color) {
		fields["Color"] = "oneof"
	}
}

func images(urls []string) []domain.Image {
	var out []domain.Image
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		out = append(out, domain.Image{URL: u, Position: len(out)})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
