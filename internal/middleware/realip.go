// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/postdesk/internal/util"
)

// RealIP applies chi's RealIP rewrite only to requests whose direct peer is
// in trusted (CIDR ranges or single addresses). Forwarding headers from any
// other peer are ignored and RemoteAddr stays the socket address. With no
// trusted proxies every request keeps its socket address.
func RealIP(trusted []string) func(http.Handler) http.Handler {
	nets, err := util.ParseNetworks(trusted)
	if err != nil {
		slog.Warn("ignoring invalid trusted proxy entries", "error", err)
	}

	return func(next http.Handler) http.Handler {
		if len(nets) == 0 {
			return next
		}
		forwarded := chimw.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if util.InNetworks(r.RemoteAddr, nets) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
