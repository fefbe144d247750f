// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/store"
	"github.com/olegiv/postdesk/internal/util"
)

const categoryTaken = "A category with this name or slug already exists"

// CategoryService lists and creates categories.
type CategoryService struct {
	st  *store.Store
	now func() time.Time
}

// NewCategoryService creates a category service.
func NewCategoryService(st *store.Store) *CategoryService {
	return &CategoryService{st: st, now: time.Now}
}

// CreateCategoryInput is a new category. Slug is derived from Name when
// empty.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description *string
}

// List returns the active categories with published post counts.
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		cats, err = q.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, storeErr(err, "", "")
	}
	return cats, nil
}

// Create adds a category.
func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (model.Category, error) {
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = util.Slugify(name)
	}

	fields := map[string]string{}
	switch {
	case name == "":
		fields["name"] = "Name is required"
	case utf8.RuneCountInString(name) > 100:
		fields["name"] = "Name must be at most 100 characters"
	}
	if name != "" && !util.IsValidSlug(slug) {
		fields["slug"] = "Slug may contain only lowercase letters, digits and single hyphens"
	} else if len(slug) > 100 {
		fields["slug"] = "Slug must be at most 100 characters"
	}
	if len(fields) > 0 {
		return model.Category{}, Validation("Please fix the highlighted fields", fields)
	}

	now := s.now().UTC()
	var cat model.Category
	err := s.st.Tx(ctx, func(q *store.Queries) error {
		taken, err := q.CategoryNameOrSlugExists(ctx, name, slug)
		if err != nil {
			return err
		}
		if taken {
			return Conflict(categoryTaken, nil)
		}
		cat, err = q.CreateCategory(ctx, store.CreateCategoryParams{
			Name:        name,
			Slug:        slug,
			Description: trimmedPtr(in.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		return model.Category{}, storeErr(err, "", categoryTaken)
	}

	slog.InfoContext(ctx, "category created", "category_id", cat.ID, "slug", cat.Slug)
	return cat, nil
}
