// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic services.
package service

import (
	"errors"
	"fmt"

	"github.com/olegiv/postdesk/internal/store"
)

// Kind classifies a service failure; handlers map kinds to HTTP statuses.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthenticationRequired
	KindInvalidCredentials
	KindRateLimited
	KindForbidden
	KindInsufficientPermissions
	KindNotFound
	KindConflict
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:                "internal",
	KindValidation:              "validation",
	KindAuthenticationRequired:  "authentication_required",
	KindInvalidCredentials:      "invalid_credentials",
	KindRateLimited:             "rate_limited",
	KindForbidden:               "forbidden",
	KindInsufficientPermissions: "insufficient_permissions",
	KindNotFound:                "not_found",
	KindConflict:                "conflict",
	KindUnavailable:             "unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified service failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports invalid input. fields may be nil.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// AuthenticationRequired reports a missing or expired session.
func AuthenticationRequired(message string) *Error {
	return &Error{Kind: KindAuthenticationRequired, Message: message}
}

// InvalidCredentials is returned for an unknown user and a wrong password
// alike.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid username/email or password"}
}

// RateLimited reports too many recent failures.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// Forbidden reports an authorization failure.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// Unavailable reports that the store could not serve the request in time.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Service temporarily unavailable", Err: err}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err. Store sentinels are recognized as well;
// anything else is internal.
func KindOf(err error) Kind {
	var se *Error
	switch {
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, store.ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	}
	return KindInternal
}

// storeErr turns a store failure into a service error. ErrNotFound becomes
// NotFound(notFound) and ErrConflict becomes Conflict(conflict).
func storeErr(err error, notFound, conflict string) error {
	var se *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, store.ErrUnavailable):
		return Unavailable(err)
	case errors.Is(err, store.ErrNotFound) && notFound != "":
		return NotFound(notFound)
	case errors.Is(err, store.ErrConflict) && conflict != "":
		return Conflict(conflict, err)
	}
	return Internal(err)
}
