// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/postdesk/internal/model"
)

// CreateLoginAttemptParams holds one login log entry.
type CreateLoginAttemptParams struct {
	Identifier  string
	IPAddress   string
	UserAgent   string
	Success     bool
	AttemptedAt time.Time
}

// CreateLoginAttempt appends a login attempt.
func (q *Queries) CreateLoginAttempt(ctx context.Context, arg CreateLoginAttemptParams) error {
	_, err := q.exec(ctx,
		`INSERT INTO login_attempts (identifier, ip_address, user_agent, success, attempted_at) VALUES (?, ?, ?, ?, ?)`,
		arg.Identifier, arg.IPAddress, arg.UserAgent, arg.Success, arg.AttemptedAt.UTC())
	return err
}

// CountRecentFailures counts failed attempts from ip after since made with
// any of identifiers.
func (q *Queries) CountRecentFailures(ctx context.Context, identifiers []string, ip string, since time.Time) (int64, error) {
	if len(identifiers) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(identifiers)+3)
	for _, id := range identifiers {
		args = append(args, id)
	}
	args = append(args, ip, false, since.UTC())

	var n int64
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts
		  WHERE identifier IN (`+placeholders(len(identifiers))+`) AND ip_address = ? AND success = ? AND attempted_at > ?`,
		args...,
	).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ListRecentLoginAttempts returns the newest attempts made with any of the
// given identifiers.
func (q *Queries) ListRecentLoginAttempts(ctx context.Context, identifiers []string, limit int) ([]model.LoginAttempt, error) {
	attempts := []model.LoginAttempt{}
	if len(identifiers) == 0 {
		return attempts, nil
	}

	args := make([]any, 0, len(identifiers)+1)
	for _, id := range identifiers {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := q.query(ctx,
		`SELECT id, identifier, ip_address, user_agent, success, attempted_at
		   FROM login_attempts
		  WHERE identifier IN (`+placeholders(len(identifiers))+`)
		  ORDER BY attempted_at DESC, id DESC
		  LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing login attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a model.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Identifier, &a.IPAddress, &a.UserAgent, &a.Success, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("scanning login attempt: %w", err)
		}
		a.AttemptedAt = a.AttemptedAt.UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
