// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"
)

// cleanupInterval is how often the SQL and memory backends purge expired rows.
const cleanupInterval = 5 * time.Minute

// Backend is a session record store plus the function that releases it.
type Backend struct {
	Store scs.Store
	close func() error
}

// Close stops cleanup goroutines and closes connections owned by the backend.
// The SQL pool itself belongs to the caller.
func (b Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Kind string
	// DB and Dialect are used by the sql backend; Dialect is one of
	// sqlite, mysql, postgres.
	DB      *sql.DB
	Dialect string
	// RedisURL and RedisPrefix are used by the redis backend.
	RedisURL    string
	RedisPrefix string
}

// NewBackend builds the configured backend.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case BackendMemory:
		s := memstore.NewWithCleanupInterval(cleanupInterval)
		return Backend{Store: s, close: func() error { s.StopCleanup(); return nil }}, nil

	case BackendSQL:
		if cfg.DB == nil {
			return Backend{}, fmt.Errorf("sql session backend requires a database")
		}
		switch cfg.Dialect {
		case "sqlite":
			s := sqlite3store.NewWithCleanupInterval(cfg.DB, cleanupInterval)
			return Backend{Store: s, close: func() error { s.StopCleanup(); return nil }}, nil
		case "mysql":
			s := mysqlstore.NewWithCleanupInterval(cfg.DB, cleanupInterval)
			return Backend{Store: s, close: func() error { s.StopCleanup(); return nil }}, nil
		case "postgres":
			s := postgresstore.NewWithCleanupInterval(cfg.DB, cleanupInterval)
			return Backend{Store: s, close: func() error { s.StopCleanup(); return nil }}, nil
		}
		return Backend{}, fmt.Errorf("unsupported sql session dialect %q", cfg.Dialect)

	case BackendRedis:
		opts := DefaultRedisOptions()
		opts.URL = cfg.RedisURL
		if cfg.RedisPrefix != "" {
			opts.Prefix = cfg.RedisPrefix
		}
		s, err := NewRedisStore(opts)
		if err != nil {
			return Backend{}, fmt.Errorf("connecting to redis: %w", err)
		}
		return Backend{Store: s, close: s.Close}, nil
	}

	return Backend{}, fmt.Errorf("unsupported session backend %q", cfg.Kind)
}

// ctxStore adapts a plain scs.Store so callers can always pass a context.
type ctxStore struct {
	scs.Store
}

func (c ctxStore) FindCtx(_ context.Context, token string) ([]byte, bool, error) {
	return c.Find(token)
}

func (c ctxStore) CommitCtx(_ context.Context, token string, b []byte, expiry time.Time) error {
	return c.Commit(token, b, expiry)
}

func (c ctxStore) DeleteCtx(_ context.Context, token string) error {
	return c.Delete(token)
}

func withCtx(s scs.Store) scs.CtxStore {
	if cs, ok := s.(scs.CtxStore); ok {
		return cs
	}
	return ctxStore{Store: s}
}
