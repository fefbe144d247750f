// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mileusna/useragent"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
)

// loginHistorySize is the number of attempts shown on the profile.
const loginHistorySize = 10

// CountryResolver maps an address to an ISO country code.
type CountryResolver interface {
	Country(ip string) string
}

// UserService serves profiles and the admin user listing.
type UserService struct {
	st  *store.Store
	geo CountryResolver
	now func() time.Time
}

// NewUserService creates a user service. geo may be nil.
func NewUserService(st *store.Store, geo CountryResolver) *UserService {
	return &UserService{st: st, geo: geo, now: time.Now}
}

// LoginHistoryEntry is a login attempt with parsed client details.
type LoginHistoryEntry struct {
	model.LoginAttempt
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
	Country string `json:"country,omitempty"`
}

// Profile is the current user with recent login activity.
type Profile struct {
	User         model.User          `json:"user"`
	LoginHistory []LoginHistoryEntry `json:"login_history"`
}

// Profile returns the user and the last attempts made with their username
// or email.
func (s *UserService) Profile(ctx context.Context, userID int64) (Profile, error) {
	var (
		user     model.User
		attempts []model.LoginAttempt
	)
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		user, err = q.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		attempts, err = q.ListRecentLoginAttempts(ctx, []string{user.Username, user.Email}, loginHistorySize)
		return err
	})
	if err != nil {
		return Profile{}, storeErr(err, "User not found", "")
	}

	history := make([]LoginHistoryEntry, 0, len(attempts))
	for _, a := range attempts {
		entry := LoginHistoryEntry{LoginAttempt: a}
		entry.Browser, entry.OS, entry.Device = parseUserAgent(a.UserAgent)
		if s.geo != nil {
			entry.Country = s.geo.Country(a.IPAddress)
		}
		history = append(history, entry)
	}
	return Profile{User: user, LoginHistory: history}, nil
}

// UpdateProfileInput holds the editable profile fields.
type UpdateProfileInput struct {
	FullName string
	Email    string
}

// UpdateProfile changes the user's display name and email. The email is
// lowercased and must not belong to another account.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (model.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	if fullName == "" {
		fields["full_name"] = "Full name is required"
	} else if utf8.RuneCountInString(fullName) > maxFullNameLength {
		fields["full_name"] = fmt.Sprintf("Full name must be at most %d characters", maxFullNameLength)
	}
	if email == "" {
		fields["email"] = "Email is required"
	} else if !emailPattern.MatchString(email) {
		fields["email"] = "Invalid email format"
	} else if utf8.RuneCountInString(email) > MaxIdentifierLength {
		fields["email"] = fmt.Sprintf("Email must be at most %d characters", MaxIdentifierLength)
	}
	if len(fields) > 0 {
		return model.User{}, Validation("Please fix the highlighted fields", fields)
	}

	const inUse = "Email already in use"
	var user model.User
	err := s.st.Tx(ctx, func(q *store.Queries) error {
		taken, err := q.EmailTakenByOther(ctx, email, userID)
		if err != nil {
			return err
		}
		if taken {
			return Conflict(inUse, nil)
		}
		if err := q.UpdateUserProfile(ctx, userID, fullName, email, s.now().UTC()); err != nil {
			return err
		}
		user, err = q.GetUserByID(ctx, userID)
		return err
	})
	if err != nil {
		return model.User{}, storeErr(err, "User not found", inUse)
	}

	slog.InfoContext(ctx, "profile updated", "user_id", user.ID)
	return user, nil
}

// parseUserAgent extracts browser, OS, and device type from a user agent string.
func parseUserAgent(uaString string) (browser, os, device string) {
	ua := useragent.Parse(uaString)

	browser, os = ua.Name, ua.OS
	if browser == "" {
		browser = "Unknown"
	}
	if os == "" {
		os = "Unknown"
	}

	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	default:
		device = "desktop"
	}
	return browser, os, device
}

// ListUsersInput holds the admin listing query.
type ListUsersInput struct {
	Search   string
	Role     string
	IsActive *bool
	Page     int
	Limit    int
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, in ListUsersInput) ([]model.UserSummary, Pagination, error) {
	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	role := strings.TrimSpace(in.Role)
	if role != "" && !model.IsValidRole(role) {
		return nil, Pagination{}, Validation("Invalid role filter", map[string]string{"role": "Role must be one of admin, editor, user"})
	}

	var (
		users []model.UserSummary
		total int64
	)
	err = s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		users, total, err = q.ListUsers(ctx, store.UserFilter{
			Search:   in.Search,
			Role:     role,
			IsActive: in.IsActive,
			Limit:    limit,
			Offset:   (page - 1) * limit,
		})
		return err
	})
	if err != nil {
		return nil, Pagination{}, storeErr(err, "", "")
	}
	return users, NewPagination(page, limit, total), nil
}

// Detail returns a user with statistics. Users may view themselves; admins
// may view anyone.
func (s *UserService) Detail(ctx context.Context, id int64, actor *session.Session) (model.UserDetail, error) {
	if actor == nil {
		return model.UserDetail{}, AuthenticationRequired("Authentication required")
	}
	if actor.UserID != id && !actor.IsAdmin() {
		return model.UserDetail{}, Forbidden("You can only view your own account")
	}

	var d model.UserDetail
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		d, err = q.GetUserDetail(ctx, id)
		return err
	})
	if err != nil {
		return model.UserDetail{}, storeErr(err, "User not found", "")
	}
	return d, nil
}
