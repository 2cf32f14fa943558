package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) InsertOrganization(ctx context.Context, tx *sql.Tx, o domain.Organization) error {
	if o.Status == "" {
		o.Status = "active"
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO organizations(id,name,status,created_at) VALUES (?,?,?,?)`,
		o.ID, o.Name, o.Status, o.CreatedAt)
	return err
}

func (r Repo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM organizations WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

// SingleOrganization returns the only organization in the workspace.
func (r Repo) SingleOrganization(ctx context.Context) (domain.Organization, error) {
	orgs, err := r.ListOrganizations(ctx)
	if err != nil {
		return domain.Organization{}, err
	}
	if len(orgs) == 0 {
		return domain.Organization{}, ErrNotFound
	}
	if len(orgs) > 1 {
		return domain.Organization{}, fmt.Errorf("multiple organizations exist; specify --org")
	}
	return orgs[0], nil
}

func (r Repo) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM organizations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UpdateOrganization(ctx context.Context, tx *sql.Tx, id string, name, status *string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.q(tx).ExecContext(ctx, fmt.Sprintf(`UPDATE organizations SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertOrgConfig validates cfg and stores it as JSON for the organization.
func (r Repo) UpsertOrgConfig(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Organization.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO org_configs(org_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, orgID, string(payload), now, now)
	return err
}

func (r Repo) GetOrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs WHERE org_id=?`, orgID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Organization.ID == "" {
		cfg.Organization.ID = orgID
	}
	return &cfg, cfg.Validate()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
