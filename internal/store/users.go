// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/util"
)

const userColumns = `id, username, email, password, full_name, role, is_active, last_login, created_at, updated_at`

// CreateUserParams holds the columns of a new user row.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Limit    int
	Offset   int
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&u.Role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, classify(err)
	}
	u.LastLoginAt = util.PtrFromNullTime(lastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

// CreateUser inserts a user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	id, err := q.insert(ctx,
		`INSERT INTO users (username, email, password, full_name, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.Username, arg.Email, arg.PasswordHash, arg.FullName, arg.Role, arg.IsActive,
		arg.CreatedAt.UTC(), arg.UpdatedAt.UTC(),
	)
	if err != nil {
		return model.User{}, err
	}
	return q.GetUserByID(ctx, id)
}

// GetUserByID returns a user regardless of the active flag.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetActiveUserByEmail looks up an active user by (already normalized) email.
func (q *Queries) GetActiveUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND is_active = ?`, email, true))
}

// GetActiveUserByUsername looks up an active user by exact username.
func (q *Queries) GetActiveUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(q.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND is_active = ?`, username, true))
}

// UserExists reports whether the username or email is already taken.
func (q *Queries) UserExists(ctx context.Context, username, email string) (bool, error) {
	var n int64
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`, username, email).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// EmailTakenByOther reports whether a user other than excludeID holds email.
func (q *Queries) EmailTakenByOther(ctx context.Context, email string, excludeID int64) (bool, error) {
	var n int64
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, excludeID).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// UpdateUserProfile sets the display name and email.
func (q *Queries) UpdateUserProfile(ctx context.Context, id int64, fullName, email string, at time.Time) error {
	res, err := q.exec(ctx,
		`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
		fullName, email, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateUserLastLogin stamps a successful login.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	return err
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, hash string, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE users SET password = ?, updated_at = ? WHERE id = ?`, hash, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CountUsers returns the number of user rows.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (f UserFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		conds = append(conds, `(LOWER(u.username) LIKE ? ESCAPE '!' OR LOWER(u.email) LIKE ? ESCAPE '!' OR LOWER(u.full_name) LIKE ? ESCAPE '!')`)
		args = append(args, p, p, p)
	}
	if f.Role != "" {
		conds = append(conds, `u.role = ?`)
		args = append(args, f.Role)
	}
	if f.IsActive != nil {
		conds = append(conds, `u.is_active = ?`)
		args = append(args, *f.IsActive)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListUsers returns one page of users, newest first, and the total number
// of rows matching the filter.
func (q *Queries) ListUsers(ctx context.Context, f UserFilter) ([]model.UserSummary, int64, error) {
	where, args := f.where()

	var total int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	rows, err := q.query(ctx,
		`SELECT u.id, u.username, u.email, u.full_name, u.role, u.is_active, u.last_login, u.created_at,
		        (SELECT COUNT(*) FROM posts p WHERE p.author_id = u.id) AS post_count
		   FROM users u`+where+`
		  ORDER BY u.created_at DESC, u.id DESC
		  LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []model.UserSummary{}
	for rows.Next() {
		var (
			u         model.UserSummary
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.IsActive,
			&lastLogin, &u.CreatedAt, &u.PostCount); err != nil {
			return nil, 0, fmt.Errorf("scanning user: %w", err)
		}
		u.LastLoginAt = util.PtrFromNullTime(lastLogin)
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}
	return users, total, nil
}

// GetUserDetail returns a user with post count and total views.
func (q *Queries) GetUserDetail(ctx context.Context, id int64) (model.UserDetail, error) {
	u, err := q.GetUserByID(ctx, id)
	if err != nil {
		return model.UserDetail{}, err
	}

	d := model.UserDetail{User: u}
	err = q.queryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(views), 0) FROM posts WHERE author_id = ?`, id,
	).Scan(&d.PostCount, &d.TotalViews)
	if err != nil {
		return model.UserDetail{}, fmt.Errorf("user stats: %w", classify(err))
	}
	return d, nil
}

// requireAffected turns an UPDATE/DELETE that touched nothing into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
