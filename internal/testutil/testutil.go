// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the postdesk project.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/olegiv/postdesk/internal/auth"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestStore opens a migrated SQLite database in t.TempDir and closes it
// when the test ends.
func TestStore(t *testing.T) *store.Store {
	t.Helper()

	cfg := store.DefaultConfig("sqlite", filepath.Join(t.TempDir(), "postdesk-test.db"))
	st, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return st
}

// TestHasher returns a bcrypt hasher at the minimum cost.
func TestHasher() *auth.Hasher {
	return auth.NewHasherWithCost(bcrypt.MinCost)
}

// CreateUser inserts an active user with the given password.
func CreateUser(t *testing.T, st *store.Store, username, password, role string) model.User {
	t.Helper()

	hash, err := TestHasher().Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	now := time.Now().UTC()
	var u model.User
	err = st.Do(context.Background(), func(q *store.Queries) error {
		var err error
		u, err = q.CreateUser(context.Background(), store.CreateUserParams{
			Username:     username,
			Email:        username + "@example.com",
			PasswordHash: hash,
			FullName:     "Test " + username,
			Role:         role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

// CreateCategory inserts an active category.
func CreateCategory(t *testing.T, st *store.Store, name, slug string) model.Category {
	t.Helper()

	now := time.Now().UTC()
	var c model.Category
	err := st.Do(context.Background(), func(q *store.Queries) error {
		var err error
		c, err = q.CreateCategory(context.Background(), store.CreateCategoryParams{
			Name: name, Slug: slug, CreatedAt: now, UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("creating category %s: %v", name, err)
	}
	return c
}
