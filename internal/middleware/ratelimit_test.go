// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(0.001, 2)
	defer rl.Stop()

	h := rl.Middleware()(okHandler)

	do := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("192.0.2.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := do("192.0.2.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("burst exhausted: status = %d, want 429", code)
	}
	if code := do("192.0.2.2:1234"); code != http.StatusOK {
		t.Errorf("other address: status = %d, want 200", code)
	}
}

func TestIPRateLimiterDefaults(t *testing.T) {
	rl := NewIPRateLimiter(0, 0)
	defer rl.Stop()

	if rl.cache.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.cache.burst)
	}
}

func TestLimiterCacheClearIfExceeds(t *testing.T) {
	lc := newLimiterCache[string](1, 1)
	lc.get("a")
	lc.get("b")
	lc.get("a")

	if n := lc.len(); n != 2 {
		t.Fatalf("len = %d, want 2", n)
	}
	if lc.clearIfExceeds(5) {
		t.Error("cleared below the limit")
	}
	if !lc.clearIfExceeds(1) {
		t.Error("did not clear above the limit")
	}
	if n := lc.len(); n != 0 {
		t.Errorf("len after clear = %d, want 0", n)
	}
}
