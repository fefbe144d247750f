// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/postdesk/internal/logging"
	"github.com/olegiv/postdesk/internal/session"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeySession holds the *session.Session of the request.
const ContextKeySession ContextKey = "session"

// LoadSession resolves the request's session token and stores the session
// in the context. Requests without a valid session pass through anonymous.
func LoadSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := sessions.Get(r.Context(), token)
			if errors.Is(err, session.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to load session", "error", err)
				WriteAPIError(w, http.StatusServiceUnavailable, CodeUnavailable, "Service temporarily unavailable", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, ContextKeySession, s)
	return logging.WithUserID(ctx, s.UserID)
}

// GetSession retrieves the current session from the request context.
// Returns nil if the request is anonymous.
func GetSession(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ContextKeySession).(*session.Session)
	return s
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSession(r) == nil {
			WriteAPIError(w, http.StatusUnauthorized, CodeAuthenticationRequired, "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only sessions whose role is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r)
			if s == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeAuthenticationRequired, "Authentication required", nil)
				return
			}

			if !s.HasRole(roles...) {
				slog.WarnContext(r.Context(), "access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_role", s.Role,
					"required_roles", roles,
				)
				writeAPIError(w, http.StatusForbidden, APIError{
					Error:    "Insufficient permissions",
					Code:     CodeInsufficientPermissions,
					Required: roles,
					Current:  s.Role,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
