// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/util"
)

// Sort columns accepted by ListPosts.
var postSortColumns = map[string]string{
	"created_at":   "p.created_at",
	"updated_at":   "p.updated_at",
	"published_at": "p.published_at",
	"title":        "p.title",
	"views":        "p.views",
}

// IsPostSortColumn reports whether ListPosts can order by name.
func IsPostSortColumn(name string) bool {
	_, ok := postSortColumns[name]
	return ok
}

// CreatePostParams holds the columns of a new post row.
type CreatePostParams struct {
	Title       string
	Slug        string
	Content     string
	ContentHTML string
	Excerpt     *string
	AuthorID    int64
	CategoryID  *int64
	Status      string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpdatePostParams lists the columns to change; nil fields are left alone.
// CategoryID is applied only when SetCategory is true, so it can be cleared.
type UpdatePostParams struct {
	Title       *string
	Slug        *string
	Content     *string
	ContentHTML *string
	Excerpt     *string
	SetCategory bool
	CategoryID  *int64
	Status      *string
	PublishedAt *time.Time
	UpdatedAt   time.Time
}

// PostFilter narrows and orders the post listing. Sort must be one of the
// columns accepted by IsPostSortColumn; anything else falls back to
// created_at.
type PostFilter struct {
	Status   string
	Search   string
	Category string
	Author   string
	Tag      string
	Sort     string
	Desc     bool
	Limit    int
	Offset   int
}

// CreatePost inserts a post and returns its id.
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (int64, error) {
	var publishedAt sql.NullTime
	if arg.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: arg.PublishedAt.UTC(), Valid: true}
	}
	return q.insert(ctx,
		`INSERT INTO posts (title, slug, content, content_html, excerpt, author_id, category_id, status, views, published_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		arg.Title, arg.Slug, arg.Content, arg.ContentHTML,
		util.NullStringFromPtr(arg.Excerpt), arg.AuthorID, util.NullInt64FromPtr(arg.CategoryID),
		arg.Status, publishedAt, arg.CreatedAt.UTC(), arg.UpdatedAt.UTC(),
	)
}

// GetPostByID returns a post with author, category and tags.
func (q *Queries) GetPostByID(ctx context.Context, id int64) (model.Post, error) {
	var (
		p            model.Post
		excerpt      sql.NullString
		categoryID   sql.NullInt64
		publishedAt  sql.NullTime
		category     sql.NullString
		categorySlug sql.NullString
	)
	err := q.queryRow(ctx,
		`SELECT p.id, p.title, p.slug, p.content, p.content_html, p.excerpt, p.author_id, p.category_id,
		        p.status, p.views, p.published_at, p.created_at, p.updated_at,
		        u.username, u.full_name, c.name, c.slug
		   FROM posts p
		   JOIN users u ON u.id = p.author_id
		   LEFT JOIN categories c ON c.id = p.category_id
		  WHERE p.id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.ContentHTML, &excerpt, &p.AuthorID, &categoryID,
		&p.Status, &p.Views, &publishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.Author, &p.AuthorName, &category, &categorySlug)
	if err != nil {
		return model.Post{}, classify(err)
	}

	p.Excerpt = util.PtrFromNullString(excerpt)
	p.CategoryID = util.PtrFromNullInt64(categoryID)
	p.PublishedAt = util.PtrFromNullTime(publishedAt)
	p.Category = util.PtrFromNullString(category)
	p.CategorySlug = util.PtrFromNullString(categorySlug)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	tags, err := q.TagsForPosts(ctx, []int64{p.ID})
	if err != nil {
		return model.Post{}, err
	}
	p.Tags = tags[p.ID]
	if p.Tags == nil {
		p.Tags = []model.Tag{}
	}
	return p, nil
}

// GetPostOwner returns the author id of a post.
func (q *Queries) GetPostOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	if err := q.queryRow(ctx, `SELECT author_id FROM posts WHERE id = ?`, id).Scan(&owner); err != nil {
		return 0, classify(err)
	}
	return owner, nil
}

// PostSlugExists reports whether slug is used by a post other than excludeID.
// Pass 0 to check every post.
func (q *Queries) PostSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var n int64
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM posts WHERE slug = ? AND id <> ?`, slug, excludeID).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// IncrementPostViews adds one view to a post.
func (q *Queries) IncrementPostViews(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `UPDATE posts SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdatePost applies the non-nil fields of arg to a post.
func (q *Queries) UpdatePost(ctx context.Context, id int64, arg UpdatePostParams) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if arg.Title != nil {
		set("title", *arg.Title)
	}
	if arg.Slug != nil {
		set("slug", *arg.Slug)
	}
	if arg.Content != nil {
		set("content", *arg.Content)
	}
	if arg.ContentHTML != nil {
		set("content_html", *arg.ContentHTML)
	}
	if arg.Excerpt != nil {
		set("excerpt", *arg.Excerpt)
	}
	if arg.SetCategory {
		set("category_id", util.NullInt64FromPtr(arg.CategoryID))
	}
	if arg.Status != nil {
		set("status", *arg.Status)
	}
	if arg.PublishedAt != nil {
		set("published_at", arg.PublishedAt.UTC())
	}
	set("updated_at", arg.UpdatedAt.UTC())

	res, err := q.exec(ctx,
		`UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		append(args, id)...,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeletePost removes a post; its tag links cascade.
func (q *Queries) DeletePost(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (f PostFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, `p.status = ?`)
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := likePattern(s)
		conds = append(conds, `(LOWER(p.title) LIKE ? ESCAPE '!' OR LOWER(p.content) LIKE ? ESCAPE '!' OR LOWER(COALESCE(p.excerpt, '')) LIKE ? ESCAPE '!')`)
		args = append(args, pat, pat, pat)
	}
	if f.Category != "" {
		conds = append(conds, `c.slug = ?`)
		args = append(args, f.Category)
	}
	if f.Author != "" {
		conds = append(conds, `u.username = ?`)
		args = append(args, f.Author)
	}
	if f.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND t.slug = ?)`)
		args = append(args, f.Tag)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f PostFilter) orderBy() string {
	col, ok := postSortColumns[f.Sort]
	if !ok {
		col = postSortColumns["created_at"]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", p.id " + dir
}

const postListFrom = `
	   FROM posts p
	   JOIN users u ON u.id = p.author_id
	   LEFT JOIN categories c ON c.id = p.category_id`

// ListPosts returns one page of posts with tags, and the total number of
// rows matching the filter.
func (q *Queries) ListPosts(ctx context.Context, f PostFilter) ([]model.PostSummary, int64, error) {
	where, args := f.where()

	var total int64
	if err := q.queryRow(ctx, `SELECT COUNT(*)`+postListFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	rows, err := q.query(ctx,
		`SELECT p.id, p.title, p.slug, p.excerpt, p.status, p.views, p.published_at, p.created_at, p.updated_at,
		        p.author_id, u.username, u.full_name, c.name, c.slug`+
			postListFrom+where+f.orderBy()+` LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []model.PostSummary{}
	ids := []int64{}
	for rows.Next() {
		var (
			p            model.PostSummary
			excerpt      sql.NullString
			publishedAt  sql.NullTime
			category     sql.NullString
			categorySlug sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &excerpt, &p.Status, &p.Views, &publishedAt,
			&p.CreatedAt, &p.UpdatedAt, &p.AuthorID, &p.Author, &p.AuthorName, &category, &categorySlug); err != nil {
			return nil, 0, fmt.Errorf("scanning post: %w", err)
		}
		p.Excerpt = util.PtrFromNullString(excerpt)
		p.PublishedAt = util.PtrFromNullTime(publishedAt)
		p.Category = util.PtrFromNullString(category)
		p.CategorySlug = util.PtrFromNullString(categorySlug)
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		posts = append(posts, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating posts: %w", err)
	}
	_ = rows.Close()

	tags, err := q.TagsForPosts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range posts {
		posts[i].Tags = tags[posts[i].ID]
		if posts[i].Tags == nil {
			posts[i].Tags = []model.Tag{}
		}
	}
	return posts, total, nil
}

// RecentPosts returns the newest posts, optionally limited to one author.
func (q *Queries) RecentPosts(ctx context.Context, authorID *int64, limit int) ([]model.RecentPost, error) {
	query := `SELECT p.id, p.title, p.slug, p.status, p.views, p.created_at, u.username
	            FROM posts p
	            JOIN users u ON u.id = p.author_id`
	var args []any
	if authorID != nil {
		query += ` WHERE p.author_id = ?`
		args = append(args, *authorID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []model.RecentPost{}
	for rows.Next() {
		var p model.RecentPost
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Status, &p.Views, &p.CreatedAt, &p.Author); err != nil {
			return nil, fmt.Errorf("scanning recent post: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
