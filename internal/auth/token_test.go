package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("super-secret"), time.Hour)

	token, err := svc.Issue("alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("token segments = %d, want 3", len(parts))
	}

	username, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if username != "alice" {
		t.Fatalf("username = %q, want %q", username, "alice")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)
	token, err := svc.Issue("bob")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("right-secret"), time.Hour)
	verifier := NewTokenService([]byte("wrong-secret"), time.Hour)

	token, err := issuer.Issue("carol")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	svc := NewTokenService([]byte("secret"), time.Hour)
	cases := []string{
		"",
		"not-a-token",
		"one.two",
		"one.two.three.four",
		"spaces are.not.allowed",
	}
	for _, input := range cases {
		if _, err := svc.Verify(input); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q) error = %v, want ErrTokenMalformed", input, err)
		}
	}
}

func TestDefaultValidityApplied(t *testing.T) {
	svc := NewTokenService([]byte("secret"), 0)
	if svc.validity != DefaultValidity {
		t.Fatalf("validity = %v, want %v", svc.validity, DefaultValidity)
	}
}
