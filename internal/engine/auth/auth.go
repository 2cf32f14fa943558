package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Permissions understood by the service.
const (
	PermStoneRead   = "stone.read"
	PermStoneWrite  = "stone.write"
	PermStoneExport = "stone.export"
	PermOrgAdmin    = "org.admin"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service provides RBAC helpers backed by SQL.
type Service struct {
	DB *sql.DB
}

func (s Service) ActorHasPermission(ctx context.Context, orgID, actorID, perm string) (bool, error) {
	if actorID == "" {
		return false, errors.New("actor_id required")
	}
	row := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM org_members m
JOIN role_permissions rp ON rp.org_id=m.org_id AND rp.role_id=m.role_id
WHERE m.org_id=? AND m.actor_id=? AND rp.permission_id=? LIMIT 1`,
		orgID, actorID, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Require returns ForbiddenError when the actor lacks perm in the organization.
func (s Service) Require(ctx context.Context, orgID, actorID, perm string) error {
	ok, err := s.ActorHasPermission(ctx, orgID, actorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

func (s Service) ActorRole(ctx context.Context, orgID, actorID string) (string, error) {
	var role string
	err := s.DB.QueryRowContext(ctx, `SELECT role_id FROM org_members WHERE org_id=? AND actor_id=?`, orgID, actorID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return role, err
}

// ActorOrganizations lists the organizations the actor belongs to, sorted.
func (s Service) ActorOrganizations(ctx context.Context, actorID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT org_id FROM org_members WHERE actor_id=?`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orgs []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	sort.Strings(orgs)
	return orgs, rows.Err()
}
