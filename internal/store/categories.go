// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/util"
)

// CreateCategoryParams holds the columns of a new category row.
type CreateCategoryParams struct {
	Name        string
	Slug        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListCategories returns the active categories ordered by name, each with
// the number of published posts filed under it.
func (q *Queries) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := q.query(ctx,
		`SELECT c.id, c.name, c.slug, c.description, c.is_active, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM posts p WHERE p.category_id = c.id AND p.status = ?) AS post_count
		   FROM categories c
		  WHERE c.is_active = ?
		  ORDER BY c.name`, model.PostStatusPublished, true)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	categories := []model.Category{}
	for rows.Next() {
		var (
			c    model.Category
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &desc, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.PostCount); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.Description = util.PtrFromNullString(desc)
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory inserts an active category.
func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (model.Category, error) {
	id, err := q.insert(ctx,
		`INSERT INTO categories (name, slug, description, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Slug, util.NullStringFromPtr(arg.Description), true, arg.CreatedAt.UTC(), arg.UpdatedAt.UTC())
	if err != nil {
		return model.Category{}, err
	}
	return model.Category{
		ID:          id,
		Name:        arg.Name,
		Slug:        arg.Slug,
		Description: arg.Description,
		IsActive:    true,
		CreatedAt:   arg.CreatedAt.UTC(),
		UpdatedAt:   arg.UpdatedAt.UTC(),
	}, nil
}

// CategoryExists reports whether a category with id exists.
func (q *Queries) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?`, id).Scan(&n); err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// CategoryNameOrSlugExists reports whether name or slug is already taken.
func (q *Queries) CategoryNameOrSlugExists(ctx context.Context, name, slug string) (bool, error) {
	var n int64
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM categories WHERE name = ? OR slug = ?`, name, slug).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// CountActiveCategories returns the number of active categories.
func (q *Queries) CountActiveCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM categories WHERE is_active = ?`, true).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}
