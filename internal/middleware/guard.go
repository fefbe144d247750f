// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/postdesk/internal/service"
)

// OwnerLookup returns the owning user id of resource id. A missing
// resource is reported as a service NotFound error.
type OwnerLookup func(ctx context.Context, id int64) (int64, error)

// RequireOwnershipOrAdmin lets the request through when the session owns
// the resource named by the {id} URL parameter, or is an admin. Existence
// is checked first, so a missing resource is 404 for every role.
func RequireOwnershipOrAdmin(lookup OwnerLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r)
			if s == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeAuthenticationRequired, "Authentication required", nil)
				return
			}

			id, ok := ParseID(chi.URLParam(r, "id"))
			if !ok {
				WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid resource ID", nil)
				return
			}

			owner, err := lookup(r.Context(), id)
			if err != nil {
				switch service.KindOf(err) {
				case service.KindNotFound:
					WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Resource not found", nil)
				case service.KindUnavailable:
					WriteAPIError(w, http.StatusServiceUnavailable, CodeUnavailable, "Service temporarily unavailable", nil)
				default:
					slog.ErrorContext(r.Context(), "ownership lookup failed", "resource_id", id, "error", err)
					WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
				}
				return
			}

			if !s.IsAdmin() && s.UserID != owner {
				slog.WarnContext(r.Context(), "access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"resource_id", id,
					"owner_id", owner,
				)
				WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You can only modify your own resources", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ParseID parses a positive integer identifier.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
