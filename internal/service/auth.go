// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/postdesk/internal/auth"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

// MaxIdentifierLength bounds login identifiers and email addresses, in
// characters. It matches the width of the stored columns.
const MaxIdentifierLength = 100

const maxFullNameLength = 100

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthConfig holds the login lockout thresholds.
type AuthConfig struct {
	// MaxFailures is the number of recent failures that blocks further
	// attempts for the same identifier and address.
	MaxFailures int
	// Window is the trailing period in which failures are counted.
	Window time.Duration
}

// DefaultAuthConfig returns 5 failures in 5 minutes.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{MaxFailures: 5, Window: 5 * time.Minute}
}

// AuthService handles login, logout, registration and password changes.
type AuthService struct {
	st        *store.Store
	hasher    *auth.Hasher
	sessions  *session.Manager
	attempts  *AttemptTracker
	cfg       AuthConfig
	dummyHash string
	now       func() time.Time
}

// NewAuthService creates the auth service. It hashes a throwaway password
// once so that lookups of unknown users cost as much as real ones.
func NewAuthService(st *store.Store, hasher *auth.Hasher, sessions *session.Manager, cfg AuthConfig) (*AuthService, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}

	dummy, err := hasher.Hash("postdesk-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("hashing dummy password: %w", err)
	}

	return &AuthService{
		st:        st,
		hasher:    hasher,
		sessions:  sessions,
		attempts:  NewAttemptTracker(st),
		cfg:       cfg,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

// LoginInput is a login request.
type LoginInput struct {
	Identifier string
	Password   string
	IP         string
	UserAgent  string
	RememberMe bool
}

// NormalizeIdentifier trims the identifier and lowercases it when it is an
// email address. Usernames stay case-sensitive.
func NormalizeIdentifier(identifier string) (normalized string, isEmail bool) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier), true
	}
	return identifier, false
}

// Login verifies credentials and issues a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*session.Session, model.User, error) {
	identifier, isEmail := NormalizeIdentifier(in.Identifier)

	fields := map[string]string{}
	if identifier == "" {
		fields["username"] = "Username or email is required"
	} else if utf8.RuneCountInString(identifier) > MaxIdentifierLength {
		fields["username"] = fmt.Sprintf("Username or email must be at most %d characters", MaxIdentifierLength)
	}
	if in.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return nil, model.User{}, Validation("Username/email and password are required", fields)
	}

	var user model.User
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		if isEmail {
			user, err = q.GetActiveUserByEmail(ctx, identifier)
		} else {
			user, err = q.GetActiveUserByUsername(ctx, identifier)
		}
		return err
	})
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, model.User{}, storeErr(err, "", "")
	}

	// Failures under the account's username and email share one budget.
	counted := []string{identifier}
	if found {
		counted = append(counted, user.Username, user.Email)
	}
	failures, err := s.attempts.CountRecentFailures(ctx, counted, in.IP, s.cfg.Window)
	if err != nil {
		return nil, model.User{}, storeErr(err, "", "")
	}
	if failures >= int64(s.cfg.MaxFailures) {
		slog.WarnContext(ctx, "login blocked after repeated failures",
			"identifier", identifier, "ip", in.IP, "failures", failures)
		return nil, model.User{}, RateLimited(fmt.Sprintf(
			"Too many failed login attempts. Please try again in %d minutes.", int(s.cfg.Window.Minutes())))
	}

	if !found {
		_, _ = s.hasher.Verify(in.Password, s.dummyHash)
		return nil, model.User{}, s.fail(ctx, identifier, in)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		return nil, model.User{}, Internal(err)
	}
	if !ok {
		return nil, model.User{}, s.fail(ctx, identifier, in)
	}

	if err := s.attempts.Record(ctx, identifier, in.IP, in.UserAgent, true); err != nil {
		return nil, model.User{}, storeErr(err, "", "")
	}

	now := s.now().UTC()
	err = s.st.Do(ctx, func(q *store.Queries) error {
		if err := q.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
			return err
		}
		if s.hasher.NeedsRehash(user.PasswordHash) {
			hash, err := s.hasher.Hash(in.Password)
			if err != nil {
				return err
			}
			if err := q.UpdateUserPassword(ctx, user.ID, hash, now); err != nil {
				return err
			}
			user.PasswordHash = hash
			slog.InfoContext(ctx, "upgraded password hash", "user_id", user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, model.User{}, storeErr(err, "", "")
	}
	user.LastLoginAt = &now

	sess, err := s.sessions.Create(ctx, user, in.RememberMe)
	if err != nil {
		return nil, model.User{}, Internal(err)
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID, "username", user.Username, "ip", in.IP)
	return sess, user, nil
}

// fail records a failed attempt and returns the uniform credentials error.
func (s *AuthService) fail(ctx context.Context, identifier string, in LoginInput) error {
	if err := s.attempts.Record(ctx, identifier, in.IP, in.UserAgent, false); err != nil {
		return storeErr(err, "", "")
	}
	slog.WarnContext(ctx, "failed login attempt", "identifier", identifier, "ip", in.IP)
	return InvalidCredentials()
}

// Logout destroys the session behind token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return Internal(err)
	}
	return nil
}

// RegisterInput is a registration request. ConfirmPassword is checked only
// when set.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
	Role            string
}

// Register creates a user. Any role other than the default requires an
// admin actor.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, actor *session.Session) (model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)
	role := strings.TrimSpace(in.Role)

	fields := map[string]string{}
	if username == "" {
		fields["username"] = "Username is required"
	} else if strings.Contains(username, "@") {
		fields["username"] = "Username must not contain @"
	} else if utf8.RuneCountInString(username) > 50 {
		fields["username"] = "Username must be at most 50 characters"
	}
	if email == "" {
		fields["email"] = "Email is required"
	} else if !emailPattern.MatchString(email) {
		fields["email"] = "Invalid email format"
	} else if utf8.RuneCountInString(email) > MaxIdentifierLength {
		fields["email"] = fmt.Sprintf("Email must be at most %d characters", MaxIdentifierLength)
	}
	if fullName == "" {
		fields["full_name"] = "Full name is required"
	} else if utf8.RuneCountInString(fullName) > maxFullNameLength {
		fields["full_name"] = fmt.Sprintf("Full name must be at most %d characters", maxFullNameLength)
	}
	if msg := s.checkPassword(in.Password); msg != "" {
		fields["password"] = msg
	} else if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		fields["confirm_password"] = "Passwords do not match"
	}
	if len(fields) > 0 {
		return model.User{}, Validation("Please fix the highlighted fields", fields)
	}

	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser {
		if actor == nil || !actor.IsAdmin() {
			return model.User{}, Forbidden("Only administrators can assign roles")
		}
		if !model.IsValidRole(role) {
			return model.User{}, Validation("Invalid role", map[string]string{"role": "Role must be one of admin, editor, user"})
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, Internal(err)
	}

	const inUse = "Username or email already in use"
	now := s.now().UTC()
	var user model.User
	err = s.st.Tx(ctx, func(q *store.Queries) error {
		exists, err := q.UserExists(ctx, username, email)
		if err != nil {
			return err
		}
		if exists {
			return Conflict(inUse, nil)
		}
		user, err = q.CreateUser(ctx, store.CreateUserParams{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Role:         role,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return err
	})
	if err != nil {
		if KindOf(err) == KindConflict {
			slog.WarnContext(ctx, "registration conflict", "username", username, "email", email)
		}
		return model.User{}, storeErr(err, "", inUse)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	fields := map[string]string{}
	if current == "" {
		fields["current_password"] = "Current password is required"
	}
	if msg := s.checkPassword(next); msg != "" {
		fields["new_password"] = msg
	} else if next == current {
		fields["new_password"] = "New password must differ from the current one"
	}
	if len(fields) > 0 {
		return Validation("Please fix the highlighted fields", fields)
	}

	var user model.User
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		user, err = q.GetUserByID(ctx, userID)
		return err
	})
	if err != nil {
		return storeErr(err, "User not found", "")
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return Internal(err)
	}
	if !ok {
		return Validation("Current password is incorrect", map[string]string{"current_password": "Current password is incorrect"})
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return Internal(err)
	}
	err = s.st.Do(ctx, func(q *store.Queries) error {
		return q.UpdateUserPassword(ctx, userID, hash, s.now().UTC())
	})
	if err != nil {
		return storeErr(err, "User not found", "")
	}

	slog.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

// checkPassword returns a validation message or "".
func (s *AuthService) checkPassword(pw string) string {
	switch {
	case pw == "":
		return "Password is required"
	case utf8.RuneCountInString(pw) < MinPasswordLength:
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	case len(pw) > auth.MaxPasswordBytes:
		return fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return ""
}
