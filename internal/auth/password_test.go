// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHasher() *Hasher {
	return NewHasherWithCost(bcrypt.MinCost)
}

func TestNewHasher_DefaultCost(t *testing.T) {
	if got := NewHasher().Cost(); got != 12 {
		t.Errorf("Cost() = %d, want 12", got)
	}
	if got := NewHasherWithCost(99).Cost(); got != DefaultCost {
		t.Errorf("out of range cost = %d, want %d", got, DefaultCost)
	}
}

func TestHash_NotPlaintext(t *testing.T) {
	h := testHasher()
	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "" || hash == "secret1" {
		t.Fatalf("Hash returned %q", hash)
	}
}

func TestHash_Salted(t *testing.T) {
	h := testHasher()
	first, err := h.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := h.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if first == second {
		t.Fatal("identical inputs produced identical hashes")
	}

	for _, hash := range []string{first, second} {
		ok, err := h.Verify("changeme", hash)
		if err != nil {
			t.Fatalf("Verify error: %v", err)
		}
		if !ok {
			t.Fatal("correct password was rejected")
		}
	}
}

func TestVerify_Wrong(t *testing.T) {
	h := testHasher()
	hash, err := h.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify("wrongpassword", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("wrong password was accepted")
	}
}

func TestVerify_Malformed(t *testing.T) {
	h := testHasher()
	for _, hash := range []string{"", "plaintext", "$argon2id$broken"} {
		ok, err := h.Verify("changeme", hash)
		if ok {
			t.Errorf("Verify(%q) accepted password", hash)
		}
		if !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Verify(%q) error = %v, want ErrMalformedHash", hash, err)
		}
	}
}

func TestVerify_LegacyArgon2(t *testing.T) {
	// Hash for "changeme" written by an older deployment.
	legacy := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"
	h := testHasher()

	ok, err := h.Verify("changeme", legacy)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("legacy hash rejected correct password")
	}

	ok, err = h.Verify("wrongpassword", legacy)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("legacy hash accepted wrong password")
	}

	if !h.NeedsRehash(legacy) {
		t.Error("argon2id hash should need rehash")
	}
}

func TestNeedsRehash(t *testing.T) {
	h := testHasher()
	current, err := h.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h.NeedsRehash(current) {
		t.Error("hash at current cost should not need rehash")
	}

	stronger := NewHasherWithCost(bcrypt.MinCost + 1)
	if !stronger.NeedsRehash(current) {
		t.Error("hash at lower cost should need rehash")
	}
}
