// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/service"
)

// PostsHandler implements post CRUD.
type PostsHandler struct {
	posts *service.PostService
}

// NewPostsHandler creates a new PostsHandler.
func NewPostsHandler(posts *service.PostService) *PostsHandler {
	return &PostsHandler{posts: posts}
}

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Excerpt    *string  `json:"excerpt"`
	CategoryID *int64   `json:"category_id"`
	Status     string   `json:"status"`
	Tags       []string `json:"tags"`
}

// UpdatePostRequest is the body of PUT /api/posts/{id}. Absent fields are
// left unchanged.
type UpdatePostRequest struct {
	Title      *string    `json:"title"`
	Content    *string    `json:"content"`
	Excerpt    *string    `json:"excerpt"`
	CategoryID optionalID `json:"category_id"`
	Status     *string    `json:"status"`
	Tags       *[]string  `json:"tags"`
}

// optionalID tells an explicit null apart from an absent field.
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

// List handles GET /api/posts.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	in := service.ListPostsInput{
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Author:   q.Get("author"),
		Tag:      q.Get("tag"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
		Page:     queryInt(r, "page", fields),
		Limit:    queryInt(r, "limit", fields),
	}
	if len(fields) > 0 {
		writeServiceError(w, r, service.Validation("Invalid query parameters", fields))
		return
	}

	posts, page, err := h.posts.List(r.Context(), in, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePage(w, posts, page)
}

// Get handles GET /api/posts/{id}.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Get(r.Context(), id, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, post, "")
}

// Create handles POST /api/posts.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.posts.Create(r.Context(), service.CreatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		CategoryID: req.CategoryID,
		Status:     req.Status,
		Tags:       req.Tags,
	}, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, post, "Post created successfully")
}

// Update handles PUT /api/posts/{id}.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	var req UpdatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.posts.Update(r.Context(), id, service.UpdatePostInput{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		CategorySet: req.CategoryID.Set,
		CategoryID:  req.CategoryID.Value,
		Status:      req.Status,
		Tags:        req.Tags,
	}, middleware.GetSession(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, post, "Post updated successfully")
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), id, middleware.GetSession(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Post deleted successfully")
}

func postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.ParseID(chi.URLParam(r, "id"))
	if !ok {
		middleware.WriteAPIError(w, http.StatusBadRequest, middleware.CodeBadRequest, "Invalid post ID", nil)
	}
	return id, ok
}
