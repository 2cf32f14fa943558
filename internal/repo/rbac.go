package repo

import (
	"context"
	"database/sql"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID string, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO roles(id, description) VALUES (?,?)`, id, nullable(desc))
	return err
}

// SetRolePermissions replaces the permission set of a role within an organization.
func (r Repo) SetRolePermissions(ctx context.Context, tx *sql.Tx, orgID, roleID string, perms []string) error {
	db := r.q(tx)
	if _, err := db.ExecContext(ctx, `DELETE FROM role_permissions WHERE org_id=? AND role_id=?`, orgID, roleID); err != nil {
		return err
	}
	for _, p := range perms {
		if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions(org_id, role_id, permission_id) VALUES (?,?,?)`, orgID, roleID, p); err != nil {
			return err
		}
	}
	return nil
}

// AssignMember adds the actor to the organization or changes its role.
func (r Repo) AssignMember(ctx context.Context, tx *sql.Tx, orgID, actorID, roleID, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO org_members(org_id, actor_id, role_id, created_at) VALUES (?,?,?,?)
ON CONFLICT(org_id, actor_id) DO UPDATE SET role_id=excluded.role_id`, orgID, actorID, roleID, now)
	return err
}

func (r Repo) RemoveMember(ctx context.Context, tx *sql.Tx, orgID, actorID string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM org_members WHERE org_id=? AND actor_id=?`, orgID, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT org_id, actor_id, role_id, created_at FROM org_members WHERE org_id=? ORDER BY created_at, actor_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.OrgID, &m.ActorID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ActorPermissions returns the permissions granted to the actor in the
// organization through its membership role.
func (r Repo) ActorPermissions(ctx context.Context, orgID, actorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT rp.permission_id
FROM org_members m JOIN role_permissions rp ON rp.org_id = m.org_id AND rp.role_id = m.role_id
WHERE m.org_id=? AND m.actor_id=?`, orgID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
