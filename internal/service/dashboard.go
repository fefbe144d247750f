// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
)

const recentPostsLimit = 5

// Dashboard is the landing data after login. Exactly one of Admin and
// Author is set.
type Dashboard struct {
	Admin       *model.AdminStats  `json:"adminStats,omitempty"`
	Author      *model.AuthorStats `json:"userStats,omitempty"`
	RecentPosts []model.RecentPost `json:"recentPosts"`
}

// DashboardService assembles dashboards.
type DashboardService struct {
	st *store.Store
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(st *store.Store) *DashboardService {
	return &DashboardService{st: st}
}

// Get returns site-wide statistics for admins and personal ones otherwise.
func (s *DashboardService) Get(ctx context.Context, actor *session.Session) (Dashboard, error) {
	if actor == nil {
		return Dashboard{}, AuthenticationRequired("Authentication required")
	}

	var d Dashboard
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var authorID *int64
		if actor.IsAdmin() {
			stats, err := q.AdminStats(ctx)
			if err != nil {
				return err
			}
			d.Admin = &stats
		} else {
			stats, err := q.AuthorStats(ctx, actor.UserID)
			if err != nil {
				return err
			}
			d.Author = &stats
			authorID = &actor.UserID
		}

		recent, err := q.RecentPosts(ctx, authorID, recentPostsLimit)
		if err != nil {
			return err
		}
		d.RecentPosts = recent
		return nil
	})
	if err != nil {
		return Dashboard{}, storeErr(err, "", "")
	}
	return d, nil
}
