// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/postdesk/internal/auth"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/render"
	"github.com/olegiv/postdesk/internal/util"
)

// Default seed credentials.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminEmail    = "admin@example.com"
	DefaultSeedPassword  = "admin123!"
)

type seedUser struct {
	username, email, fullName, role string
}

var seedUsers = []seedUser{
	{DefaultAdminUsername, DefaultAdminEmail, "Administrator", model.RoleAdmin},
	{"editor", "editor@example.com", "Editor", model.RoleEditor},
	{"user1", "user1@example.com", "Regular User", model.RoleUser},
}

var seedCategories = []struct {
	name, description string
}{
	{"Technology", "Programming, tools and the web"},
	{"Life", "Everyday notes"},
	{"Travel", "Trips and places"},
}

var seedTags = []string{"javascript", "nodejs", "mysql", "express", "webdev"}

const welcomeContent = `# Welcome to postdesk

This is the first post. Sign in as **admin** to edit it, or register a new
account and start writing your own.`

// Seed creates demo accounts, categories, tags and a welcome post when the
// database has no users yet.
func Seed(ctx context.Context, st *Store, hasher *auth.Hasher) error {
	var count int64
	err := st.Do(ctx, func(q *Queries) error {
		var err error
		count, err = q.CountUsers(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		slog.Info("users already exist, skipping seed")
		return nil
	}

	passwordHash, err := hasher.Hash(DefaultSeedPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	contentHTML, err := render.NewMarkdown().HTML(welcomeContent)
	if err != nil {
		return fmt.Errorf("rendering welcome post: %w", err)
	}

	now := time.Now().UTC()
	return st.Tx(ctx, func(q *Queries) error {
		var adminID int64
		for _, su := range seedUsers {
			u, err := q.CreateUser(ctx, CreateUserParams{
				Username:     su.username,
				Email:        su.email,
				PasswordHash: passwordHash,
				FullName:     su.fullName,
				Role:         su.role,
				IsActive:     true,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("creating user %s: %w", su.username, err)
			}
			if su.role == model.RoleAdmin {
				adminID = u.ID
			}
			slog.Info("created seed user", "id", u.ID, "username", u.Username, "role", u.Role)
		}

		var firstCategory int64
		for i, sc := range seedCategories {
			desc := sc.description
			c, err := q.CreateCategory(ctx, CreateCategoryParams{
				Name:        sc.name,
				Slug:        util.Slugify(sc.name),
				Description: &desc,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("creating category %s: %w", sc.name, err)
			}
			if i == 0 {
				firstCategory = c.ID
			}
		}

		tagIDs := make([]int64, 0, len(seedTags))
		for _, name := range seedTags {
			tag, err := q.EnsureTag(ctx, name, util.Slugify(name), now)
			if err != nil {
				return fmt.Errorf("creating tag %s: %w", name, err)
			}
			tagIDs = append(tagIDs, tag.ID)
		}

		excerpt := "The first post on this site."
		postID, err := q.CreatePost(ctx, CreatePostParams{
			Title:       "Welcome to postdesk",
			Slug:        "welcome-to-postdesk",
			Content:     welcomeContent,
			ContentHTML: contentHTML,
			Excerpt:     &excerpt,
			AuthorID:    adminID,
			CategoryID:  &firstCategory,
			Status:      model.PostStatusPublished,
			PublishedAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("creating welcome post: %w", err)
		}
		if err := q.SetPostTags(ctx, postID, tagIDs[:2]); err != nil {
			return err
		}

		slog.Info("seeded database",
			"users", len(seedUsers),
			"categories", len(seedCategories),
			"tags", len(seedTags),
			"password", DefaultSeedPassword,
		)
		return nil
	})
}
