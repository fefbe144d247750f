// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/postdesk/internal/auth"
	"github.com/olegiv/postdesk/internal/config"
	"github.com/olegiv/postdesk/internal/geoip"
	"github.com/olegiv/postdesk/internal/handler"
	"github.com/olegiv/postdesk/internal/logging"
	"github.com/olegiv/postdesk/internal/middleware"
	"github.com/olegiv/postdesk/internal/render"
	"github.com/olegiv/postdesk/internal/service"
	"github.com/olegiv/postdesk/internal/session"
	"github.com/olegiv/postdesk/internal/store"
	"github.com/olegiv/postdesk/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "postdesk - JSON publishing backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_SESSION_SECRET   Session secret (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_DB_DRIVER        sqlite|mysql|postgres (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_DB_DSN           Database DSN or SQLite path (default: ./data/postdesk.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_SESSION_BACKEND  memory|sql|redis (default: sql)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_REDIS_URL        Redis URL for the redis session backend\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_ENV              development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  POSTDESK_DO_SEED          Create demo data on an empty database\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var inner slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		inner = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(logging.NewContextHandler(inner)))

	if cfg.DBDriver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	ctx := context.Background()

	slog.Info("initializing database", "driver", cfg.DBDriver)
	st, err := store.Open(ctx, store.Config{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DBDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: 5 * time.Minute,
		AcquireTimeout:  cfg.DBAcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	slog.Info("running database migrations")
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	hasher := auth.NewHasher()
	if cfg.DoSeed {
		if err := store.Seed(ctx, st, hasher); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	backend, err := session.NewBackend(session.BackendConfig{
		Kind:        cfg.SessionBackend,
		DB:          st.DB(),
		Dialect:     string(st.Dialect()),
		RedisURL:    cfg.RedisURL,
		RedisPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("initializing session backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			slog.Error("error closing session backend", "error", err)
		}
	}()
	sessions := session.NewManager(backend.Store, session.Options{Secure: !cfg.IsDevelopment()})
	slog.Info("session manager initialized", "backend", cfg.SessionBackend)

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("GeoIP database not loaded, countries will be empty", "path", cfg.GeoIPDBPath, "error", err)
	} else if geo.Enabled() {
		slog.Info("GeoIP database loaded", "path", cfg.GeoIPDBPath)
	}
	defer func() { _ = geo.Close() }()

	authSvc, err := service.NewAuthService(st, hasher, sessions, service.AuthConfig{
		MaxFailures: cfg.LoginMaxFailures,
		Window:      cfg.LoginWindow,
	})
	if err != nil {
		return fmt.Errorf("initializing auth service: %w", err)
	}

	loginLimiter := middleware.NewIPRateLimiter(cfg.IPRateLimit, cfg.IPBurst)
	defer loginLimiter.Stop()

	csrfCfg := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.TrustedOrigins, cfg.IsDevelopment())
	securityCfg := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())

	router := handler.NewRouter(handler.RouterConfig{
		DB:       st,
		Sessions: sessions,
		Services: handler.Services{
			Auth:       authSvc,
			Users:      service.NewUserService(st, geo),
			Posts:      service.NewPostService(st, render.NewMarkdown()),
			Categories: service.NewCategoryService(st),
			Dashboard:  service.NewDashboardService(st),
		},
		TrustedProxies: cfg.TrustedProxies,
		LoginLimiter:   loginLimiter,
		CSRF:           &csrfCfg,
		Security:       &securityCfg,
		RequestTimeout: cfg.RequestTimeout,
		Version:        info,
		AccessLog:      cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
