// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves login source addresses to countries using a
// MaxMind GeoLite2-Country database.
package geoip

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/olegiv/postdesk/internal/util"
)

// CountryLocal is returned for private, loopback and link-local addresses.
const CountryLocal = "LOCAL"

// Lookup resolves addresses to ISO country codes. A nil reader resolves
// only private addresses; the zero value is ready to use.
type Lookup struct {
	mu     sync.RWMutex
	reader *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path. An empty path returns a Lookup that
// knows no countries.
func Open(path string) (*Lookup, error) {
	if path == "" {
		return &Lookup{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Lookup{}, fmt.Errorf("GeoIP database not found: %s", path)
		}
		return &Lookup{}, fmt.Errorf("checking GeoIP database: %w", err)
	}

	reader, err := maxminddb.Open(path)
	if err != nil {
		return &Lookup{}, fmt.Errorf("opening GeoIP database: %w", err)
	}
	return &Lookup{reader: reader}, nil
}

// Country returns the ISO country code for ip, CountryLocal for
// non-routable addresses, and "" when the address is invalid or unknown.
func (g *Lookup) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if util.IsPrivateIP(parsed) {
		return CountryLocal
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.reader == nil {
		return ""
	}

	var rec countryRecord
	if err := g.reader.Lookup(parsed, &rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

// Enabled reports whether a database is loaded.
func (g *Lookup) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reader != nil
}

// Close releases the database. Country keeps working for private ranges.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reader == nil {
		return nil
	}
	err := g.reader.Close()
	g.reader = nil
	return err
}
