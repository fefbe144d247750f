// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"time"

	"github.com/olegiv/postdesk/internal/store"
)

// AttemptTracker appends to and queries the login attempt log.
type AttemptTracker struct {
	st  *store.Store
	now func() time.Time
}

// NewAttemptTracker creates a tracker over st.
func NewAttemptTracker(st *store.Store) *AttemptTracker {
	return &AttemptTracker{st: st, now: time.Now}
}

// Record appends one attempt.
func (t *AttemptTracker) Record(ctx context.Context, identifier, ip, userAgent string, success bool) error {
	return t.st.Do(ctx, func(q *store.Queries) error {
		return q.CreateLoginAttempt(ctx, store.CreateLoginAttemptParams{
			Identifier:  identifier,
			IPAddress:   ip,
			UserAgent:   truncate(userAgent, 512),
			Success:     success,
			AttemptedAt: t.now().UTC(),
		})
	})
}

// CountRecentFailures counts failures from ip within window made with any of
// identifiers.
func (t *AttemptTracker) CountRecentFailures(ctx context.Context, identifiers []string, ip string, window time.Duration) (int64, error) {
	var n int64
	err := t.st.Do(ctx, func(q *store.Queries) error {
		var err error
		n, err = q.CountRecentFailures(ctx, identifiers, ip, t.now().UTC().Add(-window))
		return err
	})
	return n, err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
