package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordFormat(t *testing.T) {
	hash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	parts := strings.Split(hash, "$")
	if len(parts) != 5 {
		t.Fatalf("hash has %d segments, want 5: %q", len(parts), hash)
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		t.Fatalf("hash identifier = %s$%s, want pbkdf2$sha256", parts[0], parts[1])
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	second, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if first == second {
		t.Fatalf("two hashes of the same password are identical")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if err := verifyPassword(hash, "hunter2"); err != nil {
		t.Fatalf("verifyPassword(correct) = %v", err)
	}
	if err := verifyPassword(hash, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("verifyPassword(wrong) = %v, want ErrWrongPassword", err)
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"bcrypt$sha256$120000$c2FsdA$aGFzaA",
		"pbkdf2$sha256$zero$c2FsdA$aGFzaA",
		"pbkdf2$sha256$120000$***$aGFzaA",
	}
	for _, hash := range cases {
		err := verifyPassword(hash, "hunter2")
		if err == nil {
			t.Fatalf("verifyPassword(%q) = nil, want error", hash)
		}
		if errors.Is(err, ErrWrongPassword) {
			t.Fatalf("verifyPassword(%q) = ErrWrongPassword, want format error", hash)
		}
	}
}
