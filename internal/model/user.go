// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models shared by the store, services and
// handlers: users, posts, categories, tags and login attempts.
package model

import (
	"slices"
	"time"
)

// User roles.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleUser   = "user"
)

// Roles lists every assignable role.
var Roles = []string{RoleAdmin, RoleEditor, RoleUser}

// IsValidRole reports whether role is one of Roles.
func IsValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

// User represents a registered account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is a user row in the admin listing.
type UserSummary struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PostCount   int64      `json:"post_count"`
}

// UserDetail is a single user with authoring statistics.
type UserDetail struct {
	User
	PostCount  int64 `json:"post_count"`
	TotalViews int64 `json:"total_views"`
}

// LoginAttempt is one entry of the append-only login log.
type LoginAttempt struct {
	ID          int64     `json:"id"`
	Identifier  string    `json:"identifier"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attempted_at"`
}
