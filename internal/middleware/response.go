// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeBadRequest              = "BAD_REQUEST"
	CodeValidation              = "VALIDATION_ERROR"
	CodeAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeRateLimited             = "RATE_LIMITED"
	CodeForbidden               = "FORBIDDEN"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeNotFound                = "NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInternal                = "INTERNAL_ERROR"
	CodeUnavailable             = "SERVICE_UNAVAILABLE"
	CodeCSRF                    = "CSRF_FAILED"
	CodeTimeout                 = "REQUEST_TIMEOUT"
)

// APIError is the failure form of the JSON envelope.
type APIError struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Fields   map[string]string `json:"fields,omitempty"`
	Required []string          `json:"required,omitempty"`
	Current  string            `json:"current,omitempty"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, fields map[string]string) {
	writeAPIError(w, statusCode, APIError{Error: message, Code: code, Fields: fields})
}

func writeAPIError(w http.ResponseWriter, statusCode int, body APIError) {
	body.Success = false
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
