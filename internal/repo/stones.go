package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

const stoneColumns = `id,org_id,name,COALESCE(shape,''),COALESCE(color,''),COALESCE(cut,''),weight,buy_price,sell_price,buy_currency,sell_currency,owner,date,purchase_date,sold_at,comment,identification,bill_number,buyer,buyer_address,created_at,updated_at,deleted_at`

type StoneFilters struct {
	OrgID          string
	Owner          string
	Sold           *bool
	IncludeDeleted bool
	Limit          int
	// Keyset cursor over (created_at DESC, id DESC).
	CursorCreatedAt string
	CursorID        string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStone(row rowScanner) (domain.Stone, error) {
	var s domain.Stone
	var weight, buyPrice, sellPrice sql.NullString
	var buyCur, sellCur, owner, date, purchaseDate, soldAt, comment, ident, bill, buyer, buyerAddr sql.NullString
	var createdAt, updatedAt, deletedAt sql.NullString
	err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.Shape, &s.Color, &s.Cut,
		&weight, &buyPrice, &sellPrice, &buyCur, &sellCur, &owner, &date, &purchaseDate, &soldAt,
		&comment, &ident, &bill, &buyer, &buyerAddr, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if s.Weight, err = decimalPtr(weight); err != nil {
		return s, fmt.Errorf("stone %s weight: %w", s.ID, err)
	}
	if s.BuyPrice, err = decimalPtr(buyPrice); err != nil {
		return s, fmt.Errorf("stone %s buy_price: %w", s.ID, err)
	}
	if s.SellPrice, err = decimalPtr(sellPrice); err != nil {
		return s, fmt.Errorf("stone %s sell_price: %w", s.ID, err)
	}
	s.BuyCurrency = stringPtr(buyCur)
	s.SellCurrency = stringPtr(sellCur)
	s.Owner = stringPtr(owner)
	s.Date = stringPtr(date)
	s.PurchaseDate = stringPtr(purchaseDate)
	s.SoldAt = stringPtr(soldAt)
	s.Comment = stringPtr(comment)
	s.Identification = stringPtr(ident)
	s.BillNumber = stringPtr(bill)
	s.Buyer = stringPtr(buyer)
	s.BuyerAddress = stringPtr(buyerAddr)
	s.CreatedAt = stringPtr(createdAt)
	s.UpdatedAt = stringPtr(updatedAt)
	s.DeletedAt = stringPtr(deletedAt)
	return s, nil
}

func decimalPtr(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func (r Repo) InsertStone(ctx context.Context, tx *sql.Tx, s domain.Stone) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO stones(id,org_id,name,shape,color,cut,weight,buy_price,sell_price,buy_currency,sell_currency,owner,date,purchase_date,sold_at,comment,identification,bill_number,buyer,buyer_address,created_at,updated_at,deleted_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.OrgID, s.Name, nullable(s.Shape), nullable(s.Color), nullable(s.Cut),
		nullableDecimal(s.Weight), nullableDecimal(s.BuyPrice), nullableDecimal(s.SellPrice),
		nullableStringPtr(s.BuyCurrency), nullableStringPtr(s.SellCurrency), nullableStringPtr(s.Owner),
		nullableStringPtr(s.Date), nullableStringPtr(s.PurchaseDate), nullableStringPtr(s.SoldAt),
		nullableStringPtr(s.Comment), nullableStringPtr(s.Identification), nullableStringPtr(s.BillNumber),
		nullableStringPtr(s.Buyer), nullableStringPtr(s.BuyerAddress),
		nullableStringPtr(s.CreatedAt), nullableStringPtr(s.UpdatedAt), nullableStringPtr(s.DeletedAt))
	if err != nil {
		return err
	}
	return r.ReplaceImages(ctx, tx, s.ID, s.Images)
}

// UpdateStone overwrites every mutable column of the stone.
func (r Repo) UpdateStone(ctx context.Context, tx *sql.Tx, s domain.Stone) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE stones SET name=?, shape=?, color=?, cut=?, weight=?, buy_price=?, sell_price=?, buy_currency=?, sell_currency=?, owner=?, date=?, purchase_date=?, sold_at=?, comment=?, identification=?, bill_number=?, buyer=?, buyer_address=?, updated_at=?, deleted_at=? WHERE id=? AND org_id=?`,
		s.Name, nullable(s.Shape), nullable(s.Color), nullable(s.Cut),
		nullableDecimal(s.Weight), nullableDecimal(s.BuyPrice), nullableDecimal(s.SellPrice),
		nullableStringPtr(s.BuyCurrency), nullableStringPtr(s.SellCurrency), nullableStringPtr(s.Owner),
		nullableStringPtr(s.Date), nullableStringPtr(s.PurchaseDate), nullableStringPtr(s.SoldAt),
		nullableStringPtr(s.Comment), nullableStringPtr(s.Identification), nullableStringPtr(s.BillNumber),
		nullableStringPtr(s.Buyer), nullableStringPtr(s.BuyerAddress),
		nullableStringPtr(s.UpdatedAt), nullableStringPtr(s.DeletedAt), s.ID, s.OrgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.ReplaceImages(ctx, tx, s.ID, s.Images)
}

// SoftDeleteStone stamps deleted_at; the row stays for history.
func (r Repo) SoftDeleteStone(ctx context.Context, tx *sql.Tx, orgID, id, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE stones SET deleted_at=?, updated_at=? WHERE id=? AND org_id=? AND deleted_at IS NULL`, now, now, id, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStone returns a live stone of the organization.
func (r Repo) GetStone(ctx context.Context, tx *sql.Tx, orgID, id string) (domain.Stone, error) {
	s, err := scanStone(r.q(tx).QueryRowContext(ctx, `SELECT `+stoneColumns+` FROM stones WHERE id=? AND org_id=? AND deleted_at IS NULL`, id, orgID))
	if err != nil {
		return s, err
	}
	imgs, err := r.ListImages(ctx, tx, []string{s.ID})
	if err != nil {
		return s, err
	}
	s.Images = imgs[s.ID]
	return s, nil
}

func (r Repo) ListStones(ctx context.Context, f StoneFilters) ([]domain.Stone, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, f.OrgID)
	}
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if f.Owner != "" {
		clauses = append(clauses, "owner=?")
		args = append(args, f.Owner)
	}
	if f.Sold != nil {
		if *f.Sold {
			clauses = append(clauses, "sold_at IS NOT NULL")
		} else {
			clauses = append(clauses, "sold_at IS NULL")
		}
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + stoneColumns + ` FROM stones ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Stone
	for rows.Next() {
		s, err := scanStone(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(res) == 0 {
		return res, nil
	}
	ids := make([]string, len(res))
	for i, s := range res {
		ids[i] = s.ID
	}
	imgs, err := r.ListImages(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Images = imgs[res[i].ID]
	}
	return res, nil
}

// ReplaceImages rewrites the image list of a stone, keeping the given order.
func (r Repo) ReplaceImages(ctx context.Context, tx *sql.Tx, stoneID string, images []domain.Image) error {
	db := r.q(tx)
	if _, err := db.ExecContext(ctx, `DELETE FROM stone_images WHERE stone_id=?`, stoneID); err != nil {
		return err
	}
	for i, img := range images {
		if _, err := db.ExecContext(ctx, `INSERT INTO stone_images(stone_id,position,url) VALUES (?,?,?)`, stoneID, i, img.URL); err != nil {
			return err
		}
	}
	return nil
}

// ListImages returns images keyed by stone ID, ordered by position.
func (r Repo) ListImages(ctx context.Context, tx *sql.Tx, stoneIDs []string) (map[string][]domain.Image, error) {
	res := map[string][]domain.Image{}
	if len(stoneIDs) == 0 {
		return res, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stoneIDs)), ",")
	args := make([]any, len(stoneIDs))
	for i, id := range stoneIDs {
		args[i] = id
	}
	rows, err := r.q(tx).QueryContext(ctx, `SELECT stone_id,position,url FROM stone_images WHERE stone_id IN (`+placeholders+`) ORDER BY stone_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var stoneID string
		var img domain.Image
		if err := rows.Scan(&stoneID, &img.Position, &img.URL); err != nil {
			return nil, err
		}
		res[stoneID] = append(res[stoneID], img)
	}
	return res, rows.Err()
}
