// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/render"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
	"github.com/olegiv/postdesk/internal/util"
)

// Field limits.
const (
	maxTitleLength = 255
	maxTagLength   = 50
	maxSlugLength  = 200
)

// StatusAll lists posts of every status.
const StatusAll = "all"

const slugTaken = "A post with this slug already exists"

// slugAttempts bounds how many times a post write runs when a concurrent
// writer takes the chosen slug between the check and the insert.
const slugAttempts = 2

// PostAuthorRoles may create posts.
var PostAuthorRoles = []string{model.RoleAdmin, model.RoleEditor, model.RoleUser}

// PostService implements post CRUD.
type PostService struct {
	st      *store.Store
	md      *render.Markdown
	now     func() time.Time
	slugFor func(ctx context.Context, q *store.Queries, title string, excludeID int64) (string, error)
}

// NewPostService creates a post service.
func NewPostService(st *store.Store, md *render.Markdown) *PostService {
	return &PostService{st: st, md: md, now: time.Now, slugFor: uniqueSlug}
}

// CreatePostInput is a new post.
type CreatePostInput struct {
	Title      string
	Content    string
	Excerpt    *string
	CategoryID *int64
	Status     string
	Tags       []string
}

// UpdatePostInput lists the fields to change; nil fields are kept.
// CategorySet distinguishes an explicit null category from an absent one.
type UpdatePostInput struct {
	Title       *string
	Content     *string
	Excerpt     *string
	CategorySet bool
	CategoryID  *int64
	Status      *string
	Tags        *[]string
}

// ListPostsInput holds the listing query.
type ListPostsInput struct {
	Status   string
	Search   string
	Category string
	Author   string
	Tag      string
	Sort     string
	Order    string
	Page     int
	Limit    int
}

// Create stores a post owned by actor.
func (s *PostService) Create(ctx context.Context, in CreatePostInput, actor *session.Session) (model.Post, error) {
	if actor == nil {
		return model.Post{}, AuthenticationRequired("Authentication required")
	}
	if !actor.HasRole(PostAuthorRoles...) {
		return model.Post{}, &Error{Kind: KindInsufficientPermissions, Message: "Insufficient permissions"}
	}

	title := strings.TrimSpace(in.Title)
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = model.PostStatusDraft
	}

	fields := map[string]string{}
	if msg := checkTitle(title); msg != "" {
		fields["title"] = msg
	}
	if strings.TrimSpace(in.Content) == "" {
		fields["content"] = "Content is required"
	}
	if !model.IsValidPostStatus(status) {
		fields["status"] = "Status must be one of draft, published, archived"
	}
	if len(fields) > 0 {
		return model.Post{}, Validation("Please fix the highlighted fields", fields)
	}

	contentHTML, err := s.md.HTML(in.Content)
	if err != nil {
		return model.Post{}, Internal(err)
	}

	now := s.now().UTC()
	var post model.Post
	err = s.writeTx(ctx, func(q *store.Queries) error {
		if err := checkCategory(ctx, q, in.CategoryID); err != nil {
			return err
		}

		slug, err := s.slugFor(ctx, q, title, 0)
		if err != nil {
			return err
		}

		var publishedAt *time.Time
		if status == model.PostStatusPublished {
			publishedAt = &now
		}

		id, err := q.CreatePost(ctx, store.CreatePostParams{
			Title:       title,
			Slug:        slug,
			Content:     in.Content,
			ContentHTML: contentHTML,
			Excerpt:     trimmedPtr(in.Excerpt),
			AuthorID:    actor.UserID,
			CategoryID:  in.CategoryID,
			Status:      status,
			PublishedAt: publishedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}

		if err := attachTags(ctx, q, id, in.Tags, now); err != nil {
			return err
		}

		post, err = q.GetPostByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Post{}, storeErr(err, "", slugTaken)
	}

	slog.InfoContext(ctx, "post created", "post_id", post.ID, "slug", post.Slug, "status", post.Status)
	return post, nil
}

// Get returns a post. Reading a published post counts one view; other
// statuses are visible to their author and admins only.
func (s *PostService) Get(ctx context.Context, id int64, actor *session.Session) (model.Post, error) {
	var post model.Post
	err := s.st.Tx(ctx, func(q *store.Queries) error {
		var err error
		post, err = q.GetPostByID(ctx, id)
		if err != nil {
			return err
		}

		if !post.IsPublished() {
			if !canModify(actor, post.AuthorID) {
				return Forbidden("You do not have access to this post")
			}
			return nil
		}

		if err := q.IncrementPostViews(ctx, id); err != nil {
			return err
		}
		post.Views++
		return nil
	})
	if err != nil {
		return model.Post{}, storeErr(err, "Post not found", "")
	}
	return post, nil
}

// List returns one page of posts. Anything but published posts requires a
// session.
func (s *PostService) List(ctx context.Context, in ListPostsInput, actor *session.Session) ([]model.PostSummary, Pagination, error) {
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = model.PostStatusPublished
	}
	if status != StatusAll && !model.IsValidPostStatus(status) {
		return nil, Pagination{}, Validation("Invalid status filter",
			map[string]string{"status": "Status must be one of draft, published, archived, all"})
	}
	if status != model.PostStatusPublished && actor == nil {
		return nil, Pagination{}, AuthenticationRequired("Authentication required to list unpublished posts")
	}

	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return nil, Pagination{}, err
	}

	sort := in.Sort
	if sort == "" {
		sort = "created_at"
	}
	if !store.IsPostSortColumn(sort) {
		return nil, Pagination{}, Validation("Invalid sort field",
			map[string]string{"sort": "Sort must be one of created_at, updated_at, published_at, title, views"})
	}
	order := strings.ToLower(in.Order)
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return nil, Pagination{}, Validation("Invalid sort order", map[string]string{"order": "Order must be asc or desc"})
	}

	filter := store.PostFilter{
		Search:   in.Search,
		Category: in.Category,
		Author:   in.Author,
		Tag:      in.Tag,
		Sort:     sort,
		Desc:     order == "desc",
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	if status != StatusAll {
		filter.Status = status
	}

	var (
		posts []model.PostSummary
		total int64
	)
	err = s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		posts, total, err = q.ListPosts(ctx, filter)
		return err
	})
	if err != nil {
		return nil, Pagination{}, storeErr(err, "", "")
	}
	return posts, NewPagination(page, limit, total), nil
}

// Update applies a partial update.
func (s *PostService) Update(ctx context.Context, id int64, in UpdatePostInput, actor *session.Session) (model.Post, error) {
	if actor == nil {
		return model.Post{}, AuthenticationRequired("Authentication required")
	}

	fields := map[string]string{}
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if msg := checkTitle(title); msg != "" {
			fields["title"] = msg
		}
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		fields["content"] = "Content cannot be empty"
	}
	if in.Status != nil && !model.IsValidPostStatus(*in.Status) {
		fields["status"] = "Status must be one of draft, published, archived"
	}
	if len(fields) > 0 {
		return model.Post{}, Validation("Please fix the highlighted fields", fields)
	}

	var contentHTML *string
	if in.Content != nil {
		html, err := s.md.HTML(*in.Content)
		if err != nil {
			return model.Post{}, Internal(err)
		}
		contentHTML = &html
	}

	now := s.now().UTC()
	var post model.Post
	err := s.writeTx(ctx, func(q *store.Queries) error {
		current, err := q.GetPostByID(ctx, id)
		if err != nil {
			return err
		}
		if !canModify(actor, current.AuthorID) {
			return Forbidden("You can only modify your own posts")
		}

		arg := store.UpdatePostParams{
			Content:     in.Content,
			ContentHTML: contentHTML,
			Excerpt:     trimmedPtr(in.Excerpt),
			Status:      in.Status,
			UpdatedAt:   now,
		}

		if in.Title != nil {
			arg.Title = &title
			if title != current.Title {
				slug, err := s.slugFor(ctx, q, title, id)
				if err != nil {
					return err
				}
				arg.Slug = &slug
			}
		}

		if in.CategorySet {
			if err := checkCategory(ctx, q, in.CategoryID); err != nil {
				return err
			}
			arg.SetCategory = true
			arg.CategoryID = in.CategoryID
		}

		if in.Status != nil && *in.Status == model.PostStatusPublished && current.PublishedAt == nil {
			arg.PublishedAt = &now
		}

		if err := q.UpdatePost(ctx, id, arg); err != nil {
			return err
		}

		if in.Tags != nil {
			if err := attachTags(ctx, q, id, *in.Tags, now); err != nil {
				return err
			}
		}

		post, err = q.GetPostByID(ctx, id)
		return err
	})
	if err != nil {
		return model.Post{}, storeErr(err, "Post not found", slugTaken)
	}

	slog.InfoContext(ctx, "post updated", "post_id", post.ID, "status", post.Status)
	return post, nil
}

// Delete removes a post. A post that is already gone is NotFound.
func (s *PostService) Delete(ctx context.Context, id int64, actor *session.Session) error {
	if actor == nil {
		return AuthenticationRequired("Authentication required")
	}

	err := s.st.Tx(ctx, func(q *store.Queries) error {
		owner, err := q.GetPostOwner(ctx, id)
		if err != nil {
			return err
		}
		if !canModify(actor, owner) {
			return Forbidden("You can only delete your own posts")
		}
		return q.DeletePost(ctx, id)
	})
	if err != nil {
		return storeErr(err, "Post not found", "")
	}

	slog.InfoContext(ctx, "post deleted", "post_id", id)
	return nil
}

// Owner returns the author id of a post; it backs the ownership guard.
func (s *PostService) Owner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := s.st.Do(ctx, func(q *store.Queries) error {
		var err error
		owner, err = q.GetPostOwner(ctx, id)
		return err
	})
	if err != nil {
		return 0, storeErr(err, "Post not found", "")
	}
	return owner, nil
}

func canModify(actor *session.Session, ownerID int64) bool {
	return actor != nil && (actor.IsAdmin() || actor.UserID == ownerID)
}

func checkTitle(title string) string {
	switch {
	case title == "":
		return "Title is required"
	case utf8.RuneCountInString(title) > maxTitleLength:
		return fmt.Sprintf("Title must be at most %d characters", maxTitleLength)
	}
	return ""
}

func checkCategory(ctx context.Context, q *store.Queries, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := q.CategoryExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return Validation("Category does not exist", map[string]string{"category_id": "Category does not exist"})
	}
	return nil
}

// writeTx runs fn in a transaction and reruns it once when a unique
// constraint rejects the write. The rerun picks a fresh slug.
func (s *PostService) writeTx(ctx context.Context, fn func(q *store.Queries) error) error {
	var err error
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		err = s.st.Tx(ctx, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		slog.WarnContext(ctx, "post write lost a unique race", "attempt", attempt, "error", err)
	}
	return err
}

// uniqueSlug tries base, base-1, base-2... until a slug is free. excludeID
// lets a post keep its own slug.
func uniqueSlug(ctx context.Context, q *store.Queries, title string, excludeID int64) (string, error) {
	base := util.SlugOrFallback(title, util.FallbackSlug)
	if len(base) > maxSlugLength {
		base = strings.TrimRight(base[:maxSlugLength], "-")
	}

	for n := 0; ; n++ {
		candidate := util.NumberedSlug(base, n)
		taken, err := q.PostSlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("checking slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// attachTags finds or creates each named tag and replaces the post's links.
func attachTags(ctx context.Context, q *store.Queries, postID int64, names []string, now time.Time) error {
	ids := make([]int64, 0, len(names))
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if utf8.RuneCountInString(name) > maxTagLength {
			return Validation("Tag is too long", map[string]string{"tags": fmt.Sprintf("Tags must be at most %d characters", maxTagLength)})
		}
		slug := util.Slugify(name)
		if len(slug) > maxTagLength {
			slug = strings.TrimRight(slug[:maxTagLength], "-")
		}
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		tag, err := q.EnsureTag(ctx, name, slug, now)
		if err != nil {
			return err
		}
		ids = append(ids, tag.ID)
	}
	return q.SetPostTags(ctx, postID, ids)
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
