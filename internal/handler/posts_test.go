// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/testutil"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

type postFixture struct {
	srv        *testServer
	adminToken string
	aliceToken string
	bobToken   string
	alice      model.User
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()

	srv := newTestServer(t)
	testutil.CreateUser(t, srv.st, "root", testPassword, model.RoleAdmin)
	alice := testutil.CreateUser(t, srv.st, "alice", testPassword, model.RoleUser)
	testutil.CreateUser(t, srv.st, "bob", testPassword, model.RoleUser)

	return &postFixture{
		srv:        srv,
		adminToken: srv.login(t, "root", testPassword),
		aliceToken: srv.login(t, "alice", testPassword),
		bobToken:   srv.login(t, "bob", testPassword),
		alice:      alice,
	}
}

func (f *postFixture) createPost(t *testing.T, token string, body map[string]any) model.Post {
	t.Helper()

	rec := f.srv.do(t, http.MethodPost, "/api/posts", body, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post model.Post
	decodeData(t, rec, &post)
	return post
}

func TestCreatePost(t *testing.T) {
	f := newPostFixture(t)
	cat := testutil.CreateCategory(t, f.srv.st, "Technology", "technology")

	post := f.createPost(t, f.aliceToken, map[string]any{
		"title":       "Hello World",
		"content":     "Some **bold** text",
		"category_id": cat.ID,
		"status":      model.PostStatusPublished,
		"tags":        []string{"Go", "web dev"},
	})
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, f.alice.ID, post.AuthorID)
	assert.Contains(t, post.ContentHTML, "<strong>bold</strong>")
	assert.NotNil(t, post.PublishedAt)
	require.NotNil(t, post.CategoryID)
	assert.Equal(t, cat.ID, *post.CategoryID)
	assert.Len(t, post.Tags, 2)

	second := f.createPost(t, f.bobToken, map[string]any{"title": "Hello World", "content": "again"})
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, model.PostStatusDraft, second.Status)
	assert.Nil(t, second.PublishedAt)
}

func TestCreatePostRejected(t *testing.T) {
	f := newPostFixture(t)

	rec := f.srv.do(t, http.MethodPost, "/api/posts", map[string]any{"title": "x", "content": "y"}, "")
	requireError(t, rec, http.StatusUnauthorized, middleware.CodeAuthenticationRequired)

	rec = f.srv.do(t, http.MethodPost, "/api/posts", map[string]any{"title": "", "content": "", "status": "live"}, f.aliceToken)
	env := requireError(t, rec, http.StatusBadRequest, middleware.CodeValidation)
	assert.Contains(t, env.Fields, "title")
	assert.Contains(t, env.Fields, "content")
	assert.Contains(t, env.Fields, "status")

	rec = f.srv.do(t, http.MethodPost, "/api/posts", map[string]any{"title": "T", "content": "C", "category_id": 9999}, f.aliceToken)
	requireError(t, rec, http.StatusBadRequest, middleware.CodeValidation)
}

func TestGetPost(t *testing.T) {
	f := newPostFixture(t)
	published := f.createPost(t, f.aliceToken, map[string]any{"title": "Public", "content": "c", "status": model.PostStatusPublished})
	draft := f.createPost(t, f.aliceToken, map[string]any{"title": "Private", "content": "c"})

	t.Run("published counts views", func(t *testing.T) {
		for want := int64(1); want <= 2; want++ {
			rec := f.srv.do(t, http.MethodGet, "/api/posts/"+itoa(published.ID), nil, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var post model.Post
			decodeData(t, rec, &post)
			assert.Equal(t, want, post.Views)
		}
	})

	t.Run("draft visibility", func(t *testing.T) {
		path := "/api/posts/" + itoa(draft.ID)
		requireError(t, f.srv.do(t, http.MethodGet, path, nil, ""), http.StatusForbidden, middleware.CodeForbidden)
		requireError(t, f.srv.do(t, http.MethodGet, path, nil, f.bobToken), http.StatusForbidden, middleware.CodeForbidden)
		assert.Equal(t, http.StatusOK, f.srv.do(t, http.MethodGet, path, nil, f.aliceToken).Code)
		assert.Equal(t, http.StatusOK, f.srv.do(t, http.MethodGet, path, nil, f.adminToken).Code)
	})

	t.Run("missing and malformed", func(t *testing.T) {
		requireError(t, f.srv.do(t, http.MethodGet, "/api/posts/9999", nil, ""), http.StatusNotFound, middleware.CodeNotFound)
		requireError(t, f.srv.do(t, http.MethodGet, "/api/posts/0", nil, ""), http.StatusBadRequest, middleware.CodeBadRequest)
		requireError(t, f.srv.do(t, http.MethodGet, "/api/posts/abc", nil, ""), http.StatusBadRequest, middleware.CodeBadRequest)
	})
}

func TestUpdatePostOwnership(t *testing.T) {
	f := newPostFixture(t)
	post := f.createPost(t, f.aliceToken, map[string]any{"title": "Mine", "content": "c"})
	path := "/api/posts/" + itoa(post.ID)

	tests := []struct {
		name     string
		token    string
		path     string
		wantCode int
		wantErr  string
	}{
		{"anonymous", "", path, http.StatusUnauthorized, middleware.CodeAuthenticationRequired},
		{"other user", f.bobToken, path, http.StatusForbidden, middleware.CodeForbidden},
		{"owner", f.aliceToken, path, http.StatusOK, ""},
		{"admin", f.adminToken, path, http.StatusOK, ""},
		{"missing as user", f.bobToken, "/api/posts/9999", http.StatusNotFound, middleware.CodeNotFound},
		{"missing as admin", f.adminToken, "/api/posts/9999", http.StatusNotFound, middleware.CodeNotFound},
		{"bad id", f.aliceToken, "/api/posts/nope", http.StatusBadRequest, middleware.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.srv.do(t, http.MethodPut, tt.path, map[string]any{"excerpt": "by " + tt.name}, tt.token)
			if tt.wantErr != "" {
				requireError(t, rec, tt.wantCode, tt.wantErr)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdatePostFields(t *testing.T) {
	f := newPostFixture(t)
	cat := testutil.CreateCategory(t, f.srv.st, "Life", "life")
	post := f.createPost(t, f.aliceToken, map[string]any{
		"title":       "First Title",
		"content":     "c",
		"category_id": cat.ID,
		"tags":        []string{"one"},
	})
	path := "/api/posts/" + itoa(post.ID)

	update := func(t *testing.T, body any) model.Post {
		t.Helper()
		rec := f.srv.do(t, http.MethodPut, path, body, f.aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p model.Post
		decodeData(t, rec, &p)
		return p
	}

	t.Run("title regenerates slug", func(t *testing.T) {
		p := update(t, map[string]any{"title": "Second Title"})
		assert.Equal(t, "second-title", p.Slug)
		require.NotNil(t, p.CategoryID, "absent category_id must be kept")
		assert.Len(t, p.Tags, 1, "absent tags must be kept")
	})

	t.Run("publish stamps once", func(t *testing.T) {
		p := update(t, map[string]any{"status": model.PostStatusPublished})
		require.NotNil(t, p.PublishedAt)
		first := *p.PublishedAt

		update(t, map[string]any{"status": model.PostStatusDraft})
		p = update(t, map[string]any{"status": model.PostStatusPublished})
		require.NotNil(t, p.PublishedAt)
		assert.True(t, first.Equal(*p.PublishedAt))
	})

	t.Run("explicit null clears category", func(t *testing.T) {
		p := update(t, `{"category_id": null}`)
		assert.Nil(t, p.CategoryID)
	})

	t.Run("empty tags clear", func(t *testing.T) {
		p := update(t, map[string]any{"tags": []string{}})
		assert.Empty(t, p.Tags)
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := f.srv.do(t, http.MethodPut, path, map[string]any{"status": "gone"}, f.aliceToken)
		env := requireError(t, rec, http.StatusBadRequest, middleware.CodeValidation)
		assert.Contains(t, env.Fields, "status")
	})
}

func TestDeletePost(t *testing.T) {
	f := newPostFixture(t)
	post := f.createPost(t, f.aliceToken, map[string]any{"title": "Doomed", "content": "c"})
	path := "/api/posts/" + itoa(post.ID)

	requireError(t, f.srv.do(t, http.MethodDelete, path, nil, f.bobToken), http.StatusForbidden, middleware.CodeForbidden)

	rec := f.srv.do(t, http.MethodDelete, path, nil, f.aliceToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	requireError(t, f.srv.do(t, http.MethodDelete, path, nil, f.aliceToken), http.StatusNotFound, middleware.CodeNotFound)
	requireError(t, f.srv.do(t, http.MethodDelete, path, nil, f.adminToken), http.StatusNotFound, middleware.CodeNotFound)
}

func TestListPosts(t *testing.T) {
	f := newPostFixture(t)
	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		f.createPost(t, f.aliceToken, map[string]any{"title": title, "content": "c", "status": model.PostStatusPublished})
	}
	f.createPost(t, f.aliceToken, map[string]any{"title": "Hidden", "content": "c"})

	t.Run("published by default", func(t *testing.T) {
		rec := f.srv.do(t, http.MethodGet, "/api/posts?limit=2&sort=title&order=asc", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var posts []model.PostSummary
		env := decodeData(t, rec, &posts)
		require.Len(t, posts, 2)
		assert.Equal(t, "Alpha", posts[0].Title)
		assert.Equal(t, "Beta", posts[1].Title)
		require.NotNil(t, env.Pagination)
		assert.Equal(t, service.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2, HasNext: true}, *env.Pagination)
	})

	t.Run("drafts need a session", func(t *testing.T) {
		rec := f.srv.do(t, http.MethodGet, "/api/posts?status=draft", nil, "")
		requireError(t, rec, http.StatusUnauthorized, middleware.CodeAuthenticationRequired)

		rec = f.srv.do(t, http.MethodGet, "/api/posts?status=draft", nil, f.aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var posts []model.PostSummary
		decodeData(t, rec, &posts)
		require.Len(t, posts, 1)
		assert.Equal(t, "Hidden", posts[0].Title)
	})

	t.Run("invalid query", func(t *testing.T) {
		tests := []struct {
			query string
			field string
		}{
			{"page=abc", "page"},
			{"limit=1000", "limit"},
			{"page=0&limit=-1", "limit"},
			{"sort=password", "sort"},
			{"order=sideways", "order"},
			{"status=bogus", "status"},
		}
		for _, tt := range tests {
			rec := f.srv.do(t, http.MethodGet, "/api/posts?"+tt.query, nil, "")
			env := requireError(t, rec, http.StatusBadRequest, middleware.CodeValidation)
			assert.Contains(t, env.Fields, tt.field, tt.query)
		}
	})
}

func TestCategoriesEndpoints(t *testing.T) {
	f := newPostFixture(t)

	body := map[string]any{"name": "Travel"}
	requireError(t, f.srv.do(t, http.MethodPost, "/api/categories", body, f.aliceToken), http.StatusForbidden, middleware.CodeInsufficientPermissions)

	rec := f.srv.do(t, http.MethodPost, "/api/categories", body, f.adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat model.Category
	decodeData(t, rec, &cat)
	assert.Equal(t, "travel", cat.Slug)

	requireError(t, f.srv.do(t, http.MethodPost, "/api/categories", body, f.adminToken), http.StatusConflict, middleware.CodeConflict)

	f.createPost(t, f.aliceToken, map[string]any{"title": "Trip", "content": "c", "category_id": cat.ID, "status": model.PostStatusPublished})

	rec = f.srv.do(t, http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cats []model.Category
	decodeData(t, rec, &cats)
	require.Len(t, cats, 1)
	assert.EqualValues(t, 1, cats[0].PostCount)
}

func TestDashboardEndpoint(t *testing.T) {
	f := newPostFixture(t)
	f.createPost(t, f.aliceToken, map[string]any{"title": "Mine", "content": "c", "status": model.PostStatusPublished})

	requireError(t, f.srv.do(t, http.MethodGet, "/api/dashboard", nil, ""), http.StatusUnauthorized, middleware.CodeAuthenticationRequired)

	var admin service.Dashboard
	decodeData(t, f.srv.do(t, http.MethodGet, "/api/dashboard", nil, f.adminToken), &admin)
	require.NotNil(t, admin.Admin)
	assert.Nil(t, admin.Author)
	assert.EqualValues(t, 3, admin.Admin.Users)
	assert.EqualValues(t, 1, admin.Admin.TotalPosts)

	var bob service.Dashboard
	decodeData(t, f.srv.do(t, http.MethodGet, "/api/dashboard", nil, f.bobToken), &bob)
	require.NotNil(t, bob.Author)
	assert.Nil(t, bob.Admin)
	assert.EqualValues(t, 0, bob.Author.MyPosts)
	assert.Empty(t, bob.RecentPosts)
}
