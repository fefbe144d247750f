// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"slices"
	"time"
)

// Post statuses
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// IsValidPostStatus reports whether status is a known post status.
func IsValidPostStatus(status string) bool {
	return slices.Contains([]string{PostStatusDraft, PostStatusPublished, PostStatusArchived}, status)
}

// Post is a blog post owned by its author.
type Post struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Content      string     `json:"content"`
	ContentHTML  string     `json:"content_html"`
	Excerpt      *string    `json:"excerpt"`
	AuthorID     int64      `json:"author_id"`
	CategoryID   *int64     `json:"category_id"`
	Status       string     `json:"status"`
	Views        int64      `json:"views"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Author       string     `json:"author"`
	AuthorName   string     `json:"author_name"`
	Category     *string    `json:"category"`
	CategorySlug *string    `json:"category_slug"`
	Tags         []Tag      `json:"tags"`
}

// IsPublished returns true if the post is published.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostSummary is a post row in listings; it omits the body.
type PostSummary struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Excerpt      *string    `json:"excerpt"`
	Status       string     `json:"status"`
	Views        int64      `json:"views"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	AuthorID     int64      `json:"author_id"`
	Author       string     `json:"author"`
	AuthorName   string     `json:"author_name"`
	Category     *string    `json:"category"`
	CategorySlug *string    `json:"category_slug"`
	Tags         []Tag      `json:"tags"`
}

// Category groups posts.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PostCount   int64     `json:"post_count"`
}

// Tag labels posts.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// RecentPost is a dashboard entry.
type RecentPost struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author"`
}

// AdminStats are the site-wide dashboard counters.
type AdminStats struct {
	Users          int64 `json:"users"`
	TotalPosts     int64 `json:"totalPosts"`
	PublishedPosts int64 `json:"publishedPosts"`
	Categories     int64 `json:"categories"`
}

// AuthorStats are the dashboard counters of a non-admin user.
type AuthorStats struct {
	MyPosts          int64 `json:"myPosts"`
	MyPublishedPosts int64 `json:"myPublishedPosts"`
	MyTotalViews     int64 `json:"myTotalViews"`
}
