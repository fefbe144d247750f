// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/store"
)

var testUser = model.User{
	ID:       7,
	Username: "alice",
	Email:    "alice@example.com",
	FullName: "Alice Example",
	Role:     model.RoleEditor,
}

func newMemoryManager(t *testing.T) *Manager {
	t.Helper()
	ms := memstore.New()
	t.Cleanup(ms.StopCleanup)
	return NewManager(ms, Options{})
}

func openSQLite(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.DefaultConfig("sqlite", path))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		t.Fatalf("Migrate: %v", err)
	}
	return st
}

func sqlManager(t *testing.T, st *store.Store) *Manager {
	t.Helper()
	b, err := NewBackend(BackendConfig{Kind: BackendSQL, DB: st.DB(), Dialect: string(st.Dialect())})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return NewManager(b.Store, Options{})
}

func TestCreateAndGet(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, testUser, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(s.Token) != 43 {
		t.Errorf("token length = %d, want 43", len(s.Token))
	}
	if got := s.ExpiresAt.Sub(s.LoginTime); got != DefaultLifetime {
		t.Errorf("lifetime = %v, want %v", got, DefaultLifetime)
	}

	got, err := m.Get(ctx, s.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != testUser.ID || got.Username != "alice" || got.Role != model.RoleEditor || got.FullName != "Alice Example" {
		t.Errorf("Get = %+v", got)
	}
	if got.Token != s.Token {
		t.Errorf("Token = %q, want %q", got.Token, s.Token)
	}
	if !got.HasRole(model.RoleAdmin, model.RoleEditor) || got.IsAdmin() {
		t.Errorf("role helpers wrong for %q", got.Role)
	}
}

func TestCreate_RememberMe(t *testing.T) {
	m := newMemoryManager(t)

	s, err := m.Create(context.Background(), testUser, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := s.ExpiresAt.Sub(s.LoginTime); got != RememberLifetime {
		t.Errorf("lifetime = %v, want %v", got, RememberLifetime)
	}
}

func TestCreate_UniqueTokens(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s, err := m.Create(ctx, testUser, false)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[s.Token] {
			t.Fatalf("duplicate token %q", s.Token)
		}
		seen[s.Token] = true
	}
}

func TestGet_UnknownAndEmpty(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	if _, err := m.Get(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(\"\") err = %v, want ErrNotFound", err)
	}
	if _, err := m.Get(ctx, "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) err = %v, want ErrNotFound", err)
	}
}

func TestGet_Expired(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, testUser, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m.SetClock(func() time.Time { return time.Now().Add(DefaultLifetime + time.Minute) })
	if _, err := m.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry err = %v, want ErrNotFound", err)
	}

	// The expired record was removed as well.
	m.SetClock(time.Now)
	if _, err := m.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session resurrected: %v", err)
	}
}

func TestRefresh(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, testUser, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated := testUser
	updated.FullName = "Alice Liddell"
	updated.Email = "liddell@example.com"

	got, err := m.Refresh(ctx, s, updated)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Token != s.Token || !got.ExpiresAt.Equal(s.ExpiresAt) || !got.LoginTime.Equal(s.LoginTime) {
		t.Errorf("Refresh changed token or lifetime: %+v", got)
	}
	if s.FullName != "Alice Example" {
		t.Error("Refresh modified the caller's session")
	}

	stored, err := m.Get(ctx, s.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.FullName != "Alice Liddell" || stored.Email != "liddell@example.com" || stored.Username != "alice" {
		t.Errorf("stored session = %+v", stored)
	}
	if !stored.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", stored.ExpiresAt, s.ExpiresAt)
	}

	other := testUser
	other.ID = 8
	if _, err := m.Refresh(ctx, s, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("Refresh for another user err = %v, want ErrNotFound", err)
	}

	m.SetClock(func() time.Time { return time.Now().Add(RememberLifetime + time.Minute) })
	if _, err := m.Refresh(ctx, s, updated); !errors.Is(err, ErrNotFound) {
		t.Errorf("Refresh after expiry err = %v, want ErrNotFound", err)
	}
}

func TestDestroy(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	s, _ := m.Create(ctx, testUser, false)
	other, _ := m.Create(ctx, testUser, false)

	if err := m.Destroy(ctx, s.Token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Destroy err = %v", err)
	}
	if _, err := m.Get(ctx, other.Token); err != nil {
		t.Errorf("concurrent session destroyed too: %v", err)
	}

	// Idempotent
	if err := m.Destroy(ctx, s.Token); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
	if err := m.Destroy(ctx, ""); err != nil {
		t.Errorf("Destroy(\"\"): %v", err)
	}
}

func TestSQLBackend_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	st := openSQLite(t, path)
	m1 := sqlManager(t, st)
	s, err := m1.Create(ctx, testUser, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A second manager over the same database sees the session.
	m2 := sqlManager(t, st)
	if got, err := m2.Get(ctx, s.Token); err != nil || got.UserID != testUser.ID {
		t.Fatalf("second manager Get = %+v, %v", got, err)
	}
	_ = st.Close()

	// So does a manager over a freshly reopened database.
	st2 := openSQLite(t, path)
	t.Cleanup(func() { _ = st2.Close() })
	m3 := sqlManager(t, st2)
	got, err := m3.Get(ctx, s.Token)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Username != "alice" || !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("Get after reopen = %+v", got)
	}

	if err := m3.Destroy(ctx, s.Token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m3.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Destroy err = %v", err)
	}
}

func TestNewBackend_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  BackendConfig
	}{
		{"unknown kind", BackendConfig{Kind: "file"}},
		{"sql without db", BackendConfig{Kind: BackendSQL, Dialect: "sqlite"}},
		{"redis without url", BackendConfig{Kind: BackendRedis}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBackend(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	st := openSQLite(t, filepath.Join(t.TempDir(), "x.db"))
	t.Cleanup(func() { _ = st.Close() })
	if _, err := NewBackend(BackendConfig{Kind: BackendSQL, DB: st.DB(), Dialect: "oracle"}); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestNewBackend_Memory(t *testing.T) {
	b, err := NewBackend(BackendConfig{Kind: BackendMemory})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer func() { _ = b.Close() }()

	m := NewManager(b.Store, Options{})
	s, err := m.Create(context.Background(), testUser, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Get(context.Background(), s.Token); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"none", "", "", ""},
		{"cookie", "", "cookie-token", "cookie-token"},
		{"bearer", "Bearer header-token", "", "header-token"},
		{"bearer lower-case scheme", "bearer header-token", "", "header-token"},
		{"bearer wins over cookie", "Bearer header-token", "cookie-token", "header-token"},
		{"basic auth ignored", "Basic dXNlcjpwYXNz", "cookie-token", "cookie-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCookies(t *testing.T) {
	m := NewManager(memstore.New(), Options{Secure: true})
	s := &Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}

	rec := httptest.NewRecorder()
	m.WriteCookie(rec, s)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	c = rec.Result().Cookies()[0]
	if c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("cleared cookie = %+v", c)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("POSTDESK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: POSTDESK_TEST_REDIS_URL not set")
	}

	b, err := NewBackend(BackendConfig{Kind: BackendRedis, RedisURL: url, RedisPrefix: "postdesk-test:"})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer func() { _ = b.Close() }()

	ctx := context.Background()
	rs := b.Store.(*RedisStore)
	clearRedisPrefix(t, ctx, rs)

	m := NewManager(b.Store, Options{})
	s, err := m.Create(ctx, testUser, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, err := m.Get(ctx, s.Token); err != nil || got.UserID != testUser.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if err := m.Destroy(ctx, s.Token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m.Get(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Destroy err = %v", err)
	}

	_ = rs.Close()
	if _, _, err := rs.FindCtx(ctx, "x"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("FindCtx after Close err = %v", err)
	}
}

// clearRedisPrefix deletes every key under the store prefix so runs against a
// shared server start clean.
func clearRedisPrefix(t *testing.T, ctx context.Context, rs *RedisStore) {
	t.Helper()
	var cursor uint64
	for {
		keys, next, err := rs.client.Scan(ctx, cursor, rs.prefix+"*", 100).Result()
		if err != nil {
			t.Fatalf("scanning %s*: %v", rs.prefix, err)
		}
		if len(keys) > 0 {
			if err := rs.client.Del(ctx, keys...).Err(); err != nil {
				t.Fatalf("deleting keys: %v", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
