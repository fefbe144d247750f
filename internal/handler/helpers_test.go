// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/postdesk/internal/render"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
	"github.com/olegiv/postdesk/internal/testutil"
	"github.com/olegiv/postdesk/internal/version"
)

const testPassword = "secret123"

type testServer struct {
	st       *store.Store
	sessions *session.Manager
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, func(*RouterConfig) {})
}

func newTestServerWith(t *testing.T, configure func(*RouterConfig)) *testServer {
	t.Helper()

	st := testutil.TestStore(t)
	sessions := session.NewManager(memstore.New(), session.Options{})
	authSvc, err := service.NewAuthService(st, testutil.TestHasher(), sessions, service.DefaultAuthConfig())
	require.NoError(t, err)

	cfg := RouterConfig{
		DB:       st,
		Sessions: sessions,
		Services: Services{
			Auth:       authSvc,
			Users:      service.NewUserService(st, nil),
			Posts:      service.NewPostService(st, render.NewMarkdown()),
			Categories: service.NewCategoryService(st),
			Dashboard:  service.NewDashboardService(st),
		},
		Version: version.Info{Version: "v0.0.0-test"},
	}
	configure(&cfg)

	return &testServer{st: st, sessions: sessions, handler: NewRouter(cfg)}
}

// do sends a request with an optional JSON body and bearer token.
func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithHeaders(t, method, path, body, token, nil)
}

// doWithHeaders is do with extra request headers.
func (s *testServer) doWithHeaders(t *testing.T, method, path string, body any, token string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// login signs in and returns the session token.
func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data LoginResponse
	decodeData(t, rec, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

// envelope is the union of the success and error response shapes.
type envelope struct {
	Success    bool                `json:"success"`
	Data       json.RawMessage     `json:"data"`
	Message    string              `json:"message"`
	Error      string              `json:"error"`
	Code       string              `json:"code"`
	Fields     map[string]string   `json:"fields"`
	Required   []string            `json:"required"`
	Current    string              `json:"current"`
	Pagination *service.Pagination `json:"pagination"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// decodeData decodes the data field of a success response into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

// requireError asserts an error response with the given status and code.
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, code, env.Code)
	require.NotEmpty(t, env.Error)
	return env
}
