// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple title",
			input:    "Hello World",
			expected: "hello-world",
		},
		{
			name:     "with special characters",
			input:    "Hello, World!",
			expected: "hello-world",
		},
		{
			name:     "with numbers",
			input:    "Post 123",
			expected: "post-123",
		},
		{
			name:     "with accents",
			input:    "Café résumé",
			expected: "cafe-resume",
		},
		{
			name:     "with multiple spaces",
			input:    "Hello   World",
			expected: "hello-world",
		},
		{
			name:     "with hyphens",
			input:    "Hello - World",
			expected: "hello-world",
		},
		{
			name:     "leading and trailing separators",
			input:    "  --Test--  ",
			expected: "test",
		},
		{
			name:     "cyrillic",
			input:    "Привет мир",
			expected: "privet-mir",
		},
		{
			name:     "dots and underscores",
			input:    "node.js_tips",
			expected: "node-js-tips",
		},
		{
			name:     "only punctuation",
			input:    "!!!",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugOrFallback(t *testing.T) {
	if got := SlugOrFallback("Test", FallbackSlug); got != "test" {
		t.Errorf("SlugOrFallback(Test) = %q", got)
	}
	if got := SlugOrFallback("???", FallbackSlug); got != "post" {
		t.Errorf("SlugOrFallback(???) = %q, want post", got)
	}
}

func TestNumberedSlug(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "hello-world"},
		{1, "hello-world-1"},
		{2, "hello-world-2"},
		{12, "hello-world-12"},
	}
	for _, tt := range tests {
		if got := NumberedSlug("hello-world", tt.n); got != tt.want {
			t.Errorf("NumberedSlug(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"hello-world", true},
		{"post-123", true},
		{"a", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--hyphen", false},
		{"Upper", false},
		{"with space", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := IsValidSlug(tt.slug); got != tt.valid {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.valid)
			}
		})
	}
}

func TestSlugifyProducesValidSlugs(t *testing.T) {
	inputs := []string{"Hello World", "Café résumé", "Привет мир", "a  b  c", "x/y/z"}
	for _, in := range inputs {
		if s := Slugify(in); !IsValidSlug(s) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", in, s)
		}
	}
}
