// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/render"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
	"github.com/olegiv/postdesk/internal/testutil"
)

type testEnv struct {
	st       *store.Store
	sessions *session.Manager
	auth     *AuthService
	posts    *PostService
	users    *UserService
	cats     *CategoryService
	dash     *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := testutil.TestStore(t)
	sessions := session.NewManager(memstore.New(), session.Options{})
	authSvc, err := NewAuthService(st, testutil.TestHasher(), sessions, DefaultAuthConfig())
	require.NoError(t, err)

	return &testEnv{
		st:       st,
		sessions: sessions,
		auth:     authSvc,
		posts:    NewPostService(st, render.NewMarkdown()),
		users:    NewUserService(st, nil),
		cats:     NewCategoryService(st),
		dash:     NewDashboardService(st),
	}
}

// actorFor builds the session a logged-in u would carry.
func actorFor(u model.User) *session.Session {
	return &session.Session{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, KindOf(err), "error: %v", err)
}

// countAttempts counts every logged attempt for identifier from ip.
func countAttempts(t *testing.T, env *testEnv, identifier, ip string) int64 {
	t.Helper()
	var n int64
	err := env.st.DB().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM login_attempts WHERE identifier = ? AND ip_address = ?", identifier, ip).Scan(&n)
	require.NoError(t, err)
	return n
}
