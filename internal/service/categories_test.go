// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.cats.Create(ctx, CreateCategoryInput{Name: " Home Cooking ", Description: ptr("recipes")})
	require.NoError(t, err)
	assert.Equal(t, "Home Cooking", c.Name)
	assert.Equal(t, "home-cooking", c.Slug)
	assert.True(t, c.IsActive)

	_, err = env.cats.Create(ctx, CreateCategoryInput{Name: "home cooking 2", Slug: "home-cooking"})
	requireKind(t, err, KindConflict)

	_, err = env.cats.Create(ctx, CreateCategoryInput{Name: "Home Cooking", Slug: "other"})
	requireKind(t, err, KindConflict)
}

func TestCreateCategory_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		in    CreateCategoryInput
		field string
	}{
		{"missing name", CreateCategoryInput{}, "name"},
		{"bad slug", CreateCategoryInput{Name: "Ok", Slug: "Not A Slug"}, "slug"},
		{"untransliterable name", CreateCategoryInput{Name: "!!!"}, "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.cats.Create(context.Background(), tt.in)
			requireKind(t, err, KindValidation)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Fields, tt.field)
		})
	}
}

func TestListCategories_CountsPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := actorFor(testutil.CreateUser(t, env.st, "alice", "secret1", model.RoleUser))
	cat := testutil.CreateCategory(t, env.st, "Travel", "travel")

	_, err := env.posts.Create(ctx, CreatePostInput{Title: "A", Content: "x", CategoryID: &cat.ID, Status: model.PostStatusPublished}, actor)
	require.NoError(t, err)
	_, err = env.posts.Create(ctx, CreatePostInput{Title: "B", Content: "x", CategoryID: &cat.ID}, actor)
	require.NoError(t, err)

	cats, err := env.cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, int64(1), cats[0].PostCount)
}
