// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/session"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Response is the success form of the JSON envelope. Failures are written
// by middleware.WriteAPIError.
type Response struct {
	Success    bool                `json:"success"`
	Data       any                 `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	writeJSON(w, statusCode, Response{Success: true, Data: data, Message: message})
}

func writePage(w http.ResponseWriter, data any, p service.Pagination) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Pagination: &p})
}

// writeServiceError maps a service failure to its status and code.
// Internal failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = &service.Error{Kind: service.KindOf(err), Err: err}
	}

	status, code := http.StatusInternalServerError, middleware.CodeInternal
	switch se.Kind {
	case service.KindValidation:
		status, code = http.StatusBadRequest, middleware.CodeValidation
	case service.KindAuthenticationRequired:
		status, code = http.StatusUnauthorized, middleware.CodeAuthenticationRequired
	case service.KindInvalidCredentials:
		status, code = http.StatusUnauthorized, middleware.CodeInvalidCredentials
	case service.KindRateLimited:
		status, code = http.StatusTooManyRequests, middleware.CodeRateLimited
	case service.KindForbidden:
		status, code = http.StatusForbidden, middleware.CodeForbidden
	case service.KindInsufficientPermissions:
		status, code = http.StatusForbidden, middleware.CodeInsufficientPermissions
	case service.KindNotFound:
		status, code = http.StatusNotFound, middleware.CodeNotFound
	case service.KindConflict:
		status, code = http.StatusConflict, middleware.CodeConflict
	case service.KindUnavailable:
		status, code = http.StatusServiceUnavailable, middleware.CodeUnavailable
	}

	message := se.Message
	switch status {
	case http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "Internal server error"
	case http.StatusServiceUnavailable:
		slog.WarnContext(r.Context(), "store unavailable",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "Service temporarily unavailable"
	}
	if message == "" {
		message = http.StatusText(status)
	}

	middleware.WriteAPIError(w, status, code, message, se.Fields)
}

// decodeJSON reads the request body into dst. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "Request body is required"
		case errors.As(err, &maxErr):
			msg = "Request body is too large"
		}
		middleware.WriteAPIError(w, http.StatusBadRequest, middleware.CodeBadRequest, msg, nil)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter. Absent parameters
// return 0.
func queryInt(r *http.Request, name string, fields map[string]string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fields[name] = name + " must be an integer"
		return 0
	}
	return n
}

// requireSession returns the request session or writes a 401.
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s := middleware.GetSession(r)
	if s == nil {
		middleware.WriteAPIError(w, http.StatusUnauthorized, middleware.CodeAuthenticationRequired, "Authentication required", nil)
		return nil, false
	}
	return s, true
}
