// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/util"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	users    *service.UserService
	sessions *session.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, users *service.UserService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, sessions: sessions}
}

// RegisterRequest is the body of POST /api/auth/register and POST /api/users.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"`
	Role            string `json:"role"`
}

// LoginRequest is the body of POST /api/auth/login. Either username or
// email identifies the account.
type LoginRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// StatusResponse is returned by GET /api/auth/status.
type StatusResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *session.Session `json:"user,omitempty"`
}

// UpdateProfileRequest is the body of PUT /api/profile.
type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ChangePasswordRequest is the body of PUT /api/profile/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
		Role:            req.Role,
	}, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	sess, user, err := h.auth.Login(r.Context(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
		IP:         util.ClientIP(r),
		UserAgent:  r.UserAgent(),
		RememberMe: req.RememberMe,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.sessions.WriteCookie(w, sess)
	writeSuccess(w, http.StatusOK, LoginResponse{
		User:      user,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}, "Login successful")
}

// Logout handles POST /api/auth/logout. It succeeds without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), session.TokenFromRequest(r)); err != nil {
		slog.WarnContext(r.Context(), "logout failed", "error", err)
	}
	h.sessions.ClearCookie(w)
	writeSuccess(w, http.StatusOK, nil, "Logout successful")
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, sess, "")
}

// Status handles GET /api/auth/status.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	writeSuccess(w, http.StatusOK, StatusResponse{Authenticated: sess != nil, User: sess}, "")
}

// Profile handles GET /api/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	profile, err := h.users.Profile(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, profile, "")
}

// UpdateProfile handles PUT /api/profile. The caller's session is rewritten
// so later requests see the new name and email.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), sess.UserID, service.UpdateProfileInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := h.sessions.Refresh(r.Context(), sess, user); err != nil {
		slog.WarnContext(r.Context(), "refreshing session after profile update", "user_id", user.ID, "error", err)
	}
	writeSuccess(w, http.StatusOK, user, "Profile updated successfully")
}

// ChangePassword handles PUT /api/profile/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), sess.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Password changed successfully")
}
