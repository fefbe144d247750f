// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/model"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/version"
)

// Services groups the application services used by the router.
type Services struct {
	Auth       *service.AuthService
	Users      *service.UserService
	Posts      *service.PostService
	Categories *service.CategoryService
	Dashboard  *service.DashboardService
}

// RouterConfig configures NewRouter. Optional middleware is skipped when
// its field is nil or zero.
type RouterConfig struct {
	DB       Pinger
	Sessions *session.Manager
	Services Services

	// TrustedProxies lists the peers (CIDR ranges or addresses) whose
	// X-Forwarded-For and X-Real-IP headers are honored.
	TrustedProxies []string

	// LoginLimiter throttles POST /api/auth/login per client address.
	LoginLimiter *middleware.IPRateLimiter
	CSRF         *middleware.CSRFConfig
	Security     *middleware.SecurityHeadersConfig

	RequestTimeout time.Duration
	Version        version.Info

	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	if cfg.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if cfg.Security != nil {
		r.Use(middleware.SecurityHeaders(*cfg.Security))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, middleware.CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, middleware.CodeBadRequest, "Method not allowed", nil)
	})

	health := NewHealthHandler(cfg.DB, cfg.Version)
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	authH := NewAuthHandler(cfg.Services.Auth, cfg.Services.Users, cfg.Sessions)
	usersH := NewUsersHandler(cfg.Services.Users)
	postsH := NewPostsHandler(cfg.Services.Posts)
	catsH := NewCategoriesHandler(cfg.Services.Categories)
	dashH := NewDashboardHandler(cfg.Services.Dashboard)

	r.Route("/api", func(r chi.Router) {
		if cfg.CSRF != nil {
			r.Use(middleware.CSRF(*cfg.CSRF))
		}
		r.Use(middleware.LoadSession(cfg.Sessions))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.With(loginLimit(cfg.LoginLimiter)...).Post("/login", authH.Login)
			r.Post("/logout", authH.Logout)
			r.With(middleware.RequireAuth).Get("/me", authH.Me)
			r.Get("/status", authH.Status)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", authH.Profile)
			r.Put("/", authH.UpdateProfile)
			r.Put("/password", authH.ChangePassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleAdmin)).Get("/", usersH.List)
			r.Post("/", authH.Register)
			r.With(middleware.RequireAuth).Get("/{id}", usersH.Get)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postsH.List)
			r.With(middleware.RequireRole(service.PostAuthorRoles...)).Post("/", postsH.Create)
			r.Get("/{id}", postsH.Get)

			owned := middleware.RequireOwnershipOrAdmin(cfg.Services.Posts.Owner)
			r.With(middleware.RequireAuth, owned).Put("/{id}", postsH.Update)
			r.With(middleware.RequireAuth, owned).Delete("/{id}", postsH.Delete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", catsH.List)
			r.With(middleware.RequireRole(model.RoleAdmin)).Post("/", catsH.Create)
		})

		r.With(middleware.RequireAuth).Get("/dashboard", dashH.Get)
	})

	return r
}

func loginLimit(rl *middleware.IPRateLimiter) []func(http.Handler) http.Handler {
	if rl == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{rl.Middleware()}
}
