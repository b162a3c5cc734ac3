package pg

import (
	"context"
	"strings"

	"authgate.io/internal/auth"
	"authgate.io/internal/ids"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, status, created_at, updated_at, last_login_at`

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, username, password_hash, first_name, last_name, status)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Status)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+itoa(len(args)))
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	row := s.db.QueryRowContext(ctx, `
		update users set `+strings.Join(sets, ", ")+`
		where id = $`+itoa(len(args))+`
		returning `+userColumns, args...)
	return scanUser(row)
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $1, updated_at = now() where id = $2`,
		passwordHash, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login_at = now() where id = $1`, userID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Status, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return auth.User{}, mapErr(err)
	}
	return u, nil
}
