// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/postdesk/internal/model"
)

// GetTagBySlug returns the tag with the given slug.
func (q *Queries) GetTagBySlug(ctx context.Context, slug string) (model.Tag, error) {
	var t model.Tag
	err := q.queryRow(ctx, `SELECT id, name, slug FROM tags WHERE slug = ?`, slug).Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		return model.Tag{}, classify(err)
	}
	return t, nil
}

// CreateTag inserts a tag.
func (q *Queries) CreateTag(ctx context.Context, name, slug string, now time.Time) (model.Tag, error) {
	id, err := q.insert(ctx, `INSERT INTO tags (name, slug, created_at) VALUES (?, ?, ?)`, name, slug, now.UTC())
	if err != nil {
		return model.Tag{}, err
	}
	return model.Tag{ID: id, Name: name, Slug: slug}, nil
}

// EnsureTag returns the tag keyed by slug, creating it with name when it
// does not exist yet.
func (q *Queries) EnsureTag(ctx context.Context, name, slug string, now time.Time) (model.Tag, error) {
	t, err := q.GetTagBySlug(ctx, slug)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Tag{}, fmt.Errorf("finding tag %q: %w", slug, err)
	}
	return q.CreateTag(ctx, name, slug, now)
}

// SetPostTags replaces the tag links of a post.
func (q *Queries) SetPostTags(ctx context.Context, postID int64, tagIDs []int64) error {
	if _, err := q.exec(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("clearing post tags: %w", err)
	}
	seen := make(map[int64]bool, len(tagIDs))
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := q.exec(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, id); err != nil {
			return fmt.Errorf("linking tag %d: %w", id, err)
		}
	}
	return nil
}

// TagsForPosts loads the tags of every listed post, ordered by name.
func (q *Queries) TagsForPosts(ctx context.Context, postIDs []int64) (map[int64][]model.Tag, error) {
	out := make(map[int64][]model.Tag, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}

	rows, err := q.query(ctx,
		`SELECT pt.post_id, t.id, t.name, t.slug
		   FROM post_tags pt
		   JOIN tags t ON t.id = pt.tag_id
		  WHERE pt.post_id IN (`+placeholders(len(postIDs))+`)
		  ORDER BY t.name, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			postID int64
			t      model.Tag
		)
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out[postID] = append(out[postID], t)
	}
	return out, rows.Err()
}
