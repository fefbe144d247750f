// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session issues and resolves server-side sessions. A session is an
// opaque random token mapped to an identity snapshot in a pluggable scs
// store (memory, SQL or Redis).
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/postdesk/internal/model"
)

// CookieName is the session cookie.
const CookieName = "postdesk_session"

// Session lifetimes.
const (
	DefaultLifetime  = 24 * time.Hour
	RememberLifetime = 30 * 24 * time.Hour
)

// ErrNotFound means the token is unknown, expired or destroyed.
var ErrNotFound = errors.New("session: not found")

// Session is the identity snapshot taken at login.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin returns true if the session belongs to an admin.
func (s *Session) IsAdmin() bool {
	return s.Role == model.RoleAdmin
}

// HasRole reports whether the session role is one of roles.
func (s *Session) HasRole(roles ...string) bool {
	return slices.Contains(roles, s.Role)
}

// Options configures a Manager.
type Options struct {
	Lifetime         time.Duration
	RememberLifetime time.Duration
	// Secure marks the cookie Secure; enabled outside development.
	Secure bool
}

// Manager creates, resolves and destroys sessions.
type Manager struct {
	store scs.CtxStore
	opts  Options
	now   func() time.Time
}

// NewManager creates a session manager over store.
func NewManager(store scs.Store, opts Options) *Manager {
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}
	if opts.RememberLifetime <= 0 {
		opts.RememberLifetime = RememberLifetime
	}
	return &Manager{store: withCtx(store), opts: opts, now: time.Now}
}

// SetClock replaces the time source; used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create issues a new session for u.
func (m *Manager) Create(ctx context.Context, u model.User, remember bool) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	lifetime := m.opts.Lifetime
	if remember {
		lifetime = m.opts.RememberLifetime
	}

	now := m.now().UTC()
	s := &Session{
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		LoginTime: now,
		ExpiresAt: now.Add(lifetime),
	}

	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.CommitCtx(ctx, token, b, s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return s, nil
}

// Get resolves a token. Unknown and expired tokens return ErrNotFound.
func (m *Manager) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	b, found, err := m.store.FindCtx(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if !m.now().Before(s.ExpiresAt) {
		_ = m.store.DeleteCtx(ctx, token)
		return nil, ErrNotFound
	}

	s.Token = token
	return &s, nil
}

// Refresh rewrites the identity fields of s from u, keeping the token,
// login time and expiry. Expired sessions return ErrNotFound.
func (m *Manager) Refresh(ctx context.Context, s *Session, u model.User) (*Session, error) {
	if s == nil || s.Token == "" || s.UserID != u.ID {
		return nil, ErrNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		return nil, ErrNotFound
	}

	next := *s
	next.Username = u.Username
	next.Email = u.Email
	next.FullName = u.FullName
	next.Role = u.Role

	b, err := json.Marshal(&next)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.CommitCtx(ctx, next.Token, b, next.ExpiresAt); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &next, nil
}

// Destroy removes a session. Destroying an unknown token is not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteCtx(ctx, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// WriteCookie sets the session cookie on the response.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the bearer token, falling back to the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// newToken returns 32 random bytes, base64url encoded (43 characters).
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
