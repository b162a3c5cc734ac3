package pg

import (
	"context"
	"fmt"
	"strings"

	"authgate.io/internal/auth"
	"authgate.io/internal/ids"
)

const (
	roleColumns = `id, name, description, created_at, updated_at`
	permColumns = `id, resource, action, description, created_at, updated_at`
)

func (s *Store) CreateRole(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, role.ID, role.Name, role.Description)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, id string) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id)
	return scanRole(row)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where name = $1`, name)
	return scanRole(row)
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles order by name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, "name = $"+itoa(len(args)))
	}
	if upd.Description != nil {
		args = append(args, *upd.Description)
		sets = append(sets, "description = $"+itoa(len(args)))
	}
	if len(sets) == 0 {
		return s.GetRole(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	row := s.db.QueryRowContext(ctx, `
		update roles set `+strings.Join(sets, ", ")+`
		where id = $`+itoa(len(args))+`
		returning `+roleColumns, args...)
	return scanRole(row)
}

func (s *Store) DeleteRole(ctx context.Context, id string, cascade bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if !cascade {
		var held int
		if err := tx.QueryRowContext(ctx,
			`select count(*) from user_roles where role_id = $1`, id).Scan(&held); err != nil {
			return mapErr(err)
		}
		if held > 0 {
			return fmt.Errorf("%w: role is assigned to users", auth.ErrConflict)
		}
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where role_id = $1`, id); err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
		return mapErr(err)
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return mapErr(tx.Commit())
}

func (s *Store) CreatePermission(ctx context.Context, perm *auth.Permission) error {
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, resource, action, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, perm.ID, perm.Resource, perm.Action, perm.Description)
	if err := row.Scan(&perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permColumns+` from permissions where id = $1`, id)
	return scanPermission(row)
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+permColumns+` from permissions order by resource, action`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) UpdatePermissionDescription(ctx context.Context, id, description string) (auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		update permissions set description = $1, updated_at = now()
		where id = $2
		returning `+permColumns, description, id)
	return scanPermission(row)
}

func (s *Store) DeletePermission(ctx context.Context, id string, cascade bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if !cascade {
		var referenced int
		if err := tx.QueryRowContext(ctx,
			`select count(*) from role_permissions where permission_id = $1`, id).Scan(&referenced); err != nil {
			return mapErr(err)
		}
		if referenced > 0 {
			return fmt.Errorf("%w: permission is referenced by roles", auth.ErrConflict)
		}
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where permission_id = $1`, id); err != nil {
		return mapErr(err)
	}
	res, err := tx.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return mapErr(tx.Commit())
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from roles where id = $1)`, roleID).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return auth.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`delete from role_permissions where role_id = $1`, roleID); err != nil {
		return mapErr(err)
	}
	for _, key := range keys {
		resource, action, err := auth.SplitPermissionKey(key)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where resource = $2 and action = $3
		`, roleID, resource, action)
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown permission %q", auth.ErrNotFound, key)
		}
	}
	return mapErr(tx.Commit())
}

func (s *Store) ListPermissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.resource, p.action, p.description, p.created_at, p.updated_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.resource, p.action
	`, roleID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, perm)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) AssignRole(ctx context.Context, userID, roleID string) (auth.UserRoleAssignment, error) {
	var a auth.UserRoleAssignment
	row := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict (user_id, role_id) do update set user_id = excluded.user_id
		returning user_id, role_id, created_at
	`, userID, roleID)
	if err := row.Scan(&a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
		return auth.UserRoleAssignment{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id = $1 and role_id = $2`, userID, roleID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *Store) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from users where id = $1)`, userID).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return auth.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return mapErr(err)
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into user_roles (user_id, role_id) values ($1, $2)`, userID, roleID); err != nil {
			return mapErr(err)
		}
	}
	return mapErr(tx.Commit())
}

func (s *Store) ListRoleGrants(ctx context.Context, userID string) ([]auth.RoleGrant, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where id = $1)`, userID).Scan(&exists); err != nil {
		return nil, mapErr(err)
	}
	if !exists {
		return nil, auth.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at, r.updated_at,
		       p.id, p.resource, p.action, p.description
		from user_roles ur
		join roles r on r.id = ur.role_id
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by r.name, p.resource, p.action
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var (
		grants []auth.RoleGrant
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			role                                  auth.Role
			pID, pResource, pAction, pDescription *string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt,
			&pID, &pResource, &pAction, &pDescription); err != nil {
			return nil, mapErr(err)
		}
		i, seen := index[role.ID]
		if !seen {
			grants = append(grants, auth.RoleGrant{Role: role})
			i = len(grants) - 1
			index[role.ID] = i
		}
		if pID != nil {
			perm := auth.Permission{ID: *pID, Resource: *pResource, Action: *pAction}
			if pDescription != nil {
				perm.Description = *pDescription
			}
			grants[i].Permissions = append(grants[i].Permissions, perm)
		}
	}
	return grants, mapErr(rows.Err())
}

func scanRole(row rowScanner) (auth.Role, error) {
	var role auth.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return auth.Role{}, mapErr(err)
	}
	return role, nil
}

func scanPermission(row rowScanner) (auth.Permission, error) {
	var perm auth.Permission
	if err := row.Scan(&perm.ID, &perm.Resource, &perm.Action, &perm.Description,
		&perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return auth.Permission{}, mapErr(err)
	}
	return perm, nil
}
