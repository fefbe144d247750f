// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"github.com/olegiv/postdesk/internal/model"
)

// AdminStats returns site-wide counters.
func (q *Queries) AdminStats(ctx context.Context) (model.AdminStats, error) {
	var s model.AdminStats
	err := q.queryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        (SELECT COUNT(*) FROM posts),
		        (SELECT COUNT(*) FROM posts WHERE status = ?),
		        (SELECT COUNT(*) FROM categories WHERE is_active = ?)`,
		model.PostStatusPublished, true,
	).Scan(&s.Users, &s.TotalPosts, &s.PublishedPosts, &s.Categories)
	if err != nil {
		return model.AdminStats{}, fmt.Errorf("admin stats: %w", classify(err))
	}
	return s, nil
}

// AuthorStats returns counters for one author's posts.
func (q *Queries) AuthorStats(ctx context.Context, authorID int64) (model.AuthorStats, error) {
	var s model.AuthorStats
	err := q.queryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(views), 0)
		   FROM posts WHERE author_id = ?`,
		model.PostStatusPublished, authorID,
	).Scan(&s.MyPosts, &s.MyPublishedPosts, &s.MyTotalViews)
	if err != nil {
		return model.AuthorStats{}, fmt.Errorf("author stats: %w", classify(err))
	}
	return s, nil
}
