package crypto

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	h1, err := h.HashPassword("p@ssw0rD")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := h.HashPassword("p@ssw0rD")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("same password hashed twice must differ by salt")
	}
	if strings.Contains(h1, "p@ssw0rD") {
		t.Fatalf("hash contains plaintext")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	if _, err := h.HashPassword(strings.Repeat("a", MaxPasswordBytes+1)); err == nil {
		t.Fatalf("want error for password over %d bytes", MaxPasswordBytes)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	hash, err := h.HashPassword("correct Horse 1!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !h.VerifyPassword("correct Horse 1!", hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if h.VerifyPassword("wrong", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if h.VerifyPassword("", hash) {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
	if h.VerifyPassword("correct Horse 1!", "not-a-hash") {
		t.Fatalf("VerifyPassword: expected false for malformed hash")
	}
}

func TestNewHasher_CostFallback(t *testing.T) {
	t.Parallel()

	if NewHasher(0).cost != bcrypt.DefaultCost {
		t.Fatalf("cost 0 must fall back to default")
	}
	if NewHasher(bcrypt.MaxCost+1).cost != bcrypt.DefaultCost {
		t.Fatalf("cost above max must fall back to default")
	}
	if NewHasher(bcrypt.MinCost).cost != bcrypt.MinCost {
		t.Fatalf("valid cost must be kept")
	}
}
