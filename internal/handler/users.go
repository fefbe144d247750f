// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/service"
)

// UsersHandler serves the user directory.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	in := service.ListUsersInput{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Page:   queryInt(r, "page", fields),
		Limit:  queryInt(r, "limit", fields),
	}
	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			fields["is_active"] = "is_active must be true or false"
		} else {
			in.IsActive = &active
		}
	}
	if len(fields) > 0 {
		writeServiceError(w, r, service.Validation("Invalid query parameters", fields))
		return
	}

	users, page, err := h.users.List(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, users, page)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.ParseID(chi.URLParam(r, "id"))
	if !ok {
		middleware.WriteAPIError(w, http.StatusBadRequest, middleware.CodeBadRequest, "Invalid user ID", nil)
		return
	}

	detail, err := h.users.Detail(r.Context(), id, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, detail, "")
}
